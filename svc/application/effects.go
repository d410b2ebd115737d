package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/validator"
)

const (
	pushShortlisted = "Your profile was recently shortlisted."
	pushInvited     = "Congratulations! You have been invited for an audition!"
	pushRejected    = "Your Application on audition %s has been rejected."

	maxTitleLength           = 255
	maxRejectionReasonLength = 2000
)

// Effect names, as recorded in the dispatch journal.
const (
	EffectDebitTokens      = "debit_tokens"
	EffectIncentiveCredit  = "incentive_credit"
	EffectPushShortlisted  = "push_shortlisted"
	EffectEmailShortlisted = "email_shortlisted"
	EffectCreateInvite     = "create_invite"
	EffectInviteMessage    = "invite_message"
	EffectPushInvited      = "push_invited"
	EffectEmailInvited     = "email_invited"
	EffectRejectionReason  = "rejection_reason"
	EffectPushRejected     = "push_rejected"
	EffectRecordActivity   = "record_activity"
)

func validateInvite(p Payload) error {
	return validator.Apply(
		validator.RequiredString("title", p.Title),
		validator.MaxLenString("title", p.Title, maxTitleLength),
		validator.RequiredString("description", p.Description),
		validator.RequiredString("location", p.Location),
		validator.RequiredTime("date", p.Date),
		validator.When(p.AuditionType != "",
			validator.InList("audition_type", p.AuditionType, auditionTypes)),
	)
}

func validateRejection(p Payload) error {
	return validator.Apply(
		validator.MaxLenString("rejection_reason", p.RejectionReason, maxRejectionReasonLength),
	)
}

func debitReference(d Dispatch) string { return "apply_" + d.Key }

func (d *Dispatcher) effectBindings() map[State][]effect {
	activity := effect{name: EffectRecordActivity, run: d.recordActivity}

	return map[State][]effect{
		StateApplied: {
			{
				name:       EffectDebitTokens,
				critical:   true,
				applies:    func(disp Dispatch) bool { return disp.ChargeTokens },
				run:        d.debitTokens,
				compensate: d.refundTokens,
			},
			// last critical effect of applied, so it needs no compensation
			{name: EffectIncentiveCredit, critical: true, run: d.creditIncentive},
			activity,
		},
		StateShortlisted: {
			{name: EffectPushShortlisted, run: d.pushShortlisted},
			{name: EffectEmailShortlisted, run: d.emailShortlisted},
			activity,
		},
		StateInvited: {
			{
				name:       EffectCreateInvite,
				critical:   true,
				run:        d.createInvite,
				compensate: d.deleteInvite,
			},
			{name: EffectInviteMessage, run: d.sendInviteMessage},
			{name: EffectPushInvited, run: d.pushInvited},
			{name: EffectEmailInvited, run: d.emailInvited},
			activity,
		},
		StateRejected: {
			{
				name:       EffectRejectionReason,
				critical:   true,
				run:        d.storeRejectionReason,
				compensate: d.clearRejectionReason,
			},
			{name: EffectPushRejected, run: d.pushRejected},
			activity,
		},
		StatePipelined:      {activity},
		StateIgnored:        {activity},
		StateInviteAccepted: {activity},
		StateInviteRejected: {activity},
		StateAuditionDone:   {activity},
		StateAccepted:       {activity},
		StateOnHold:         {activity},
		StateJobClosed:      {activity},
	}
}

func (d *Dispatcher) debitTokens(ctx context.Context, ec *effectContext) error {
	job, err := ec.Job(ctx)
	if err != nil {
		return err
	}
	if job.RequiredTokens <= 0 {
		return nil
	}
	_, err = d.ledger.Debit(ctx, ec.app.UserID, job.RequiredTokens, debitReference(ec.dispatch))
	return err
}

func (d *Dispatcher) refundTokens(ctx context.Context, ec *effectContext) error {
	job, err := ec.Job(ctx)
	if err != nil {
		return err
	}
	if job.RequiredTokens <= 0 {
		return nil
	}
	_, err = d.ledger.Credit(ctx, ec.app.UserID, job.RequiredTokens, "refund_"+debitReference(ec.dispatch))
	return err
}

// creditIncentive pays the job's creator when they are a casting director.
// The key is per application, so re-entering applied never pays twice.
func (d *Dispatcher) creditIncentive(ctx context.Context, ec *effectContext) error {
	job, err := ec.Job(ctx)
	if err != nil {
		return err
	}
	creator, err := d.directory.User(ctx, job.CreatedBy)
	if err != nil {
		return fmt.Errorf("load job creator: %w", err)
	}
	if !creator.IsCastingDirector {
		return nil
	}
	amount, err := IncentiveAmount(creator.IncentivePlan, job.RequiredTokens)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return nil
	}
	_, err = d.ledger.Credit(ctx, creator.ID, amount, "application_"+ec.app.ID.String())
	return err
}

func (d *Dispatcher) pushShortlisted(ctx context.Context, ec *effectContext) error {
	candidate, err := ec.Candidate(ctx)
	if err != nil {
		return err
	}
	return d.notifier.SendPush(ctx, candidate.ID, pushShortlisted, map[string]string{
		"job_id":         ec.app.JobID.String(),
		"application_id": ec.app.ID.String(),
	})
}

func (d *Dispatcher) emailShortlisted(ctx context.Context, ec *effectContext) error {
	candidate, err := ec.Candidate(ctx)
	if err != nil {
		return err
	}
	if !candidate.Preferences.EmailNotification || candidate.Email == "" {
		return nil
	}
	job, err := ec.Job(ctx)
	if err != nil {
		return err
	}
	return d.notifier.SendEmail(ctx, candidate.ID, EmailMessage{
		Template: "shortlisted",
		Subject:  "You have been shortlisted for " + job.Title,
		Data: map[string]string{
			"first_name": candidate.FirstName,
			"job_title":  job.Title,
		},
	})
}

func (d *Dispatcher) createInvite(ctx context.Context, ec *effectContext) error {
	p := ec.dispatch.Payload
	_, err := d.invites.CreateInvite(ctx, AuditionInvite{
		ID:             inviteIDFor(ec.dispatch.Key),
		Title:          p.Title,
		Description:    p.Description,
		Location:       p.Location,
		Date:           p.Date,
		AuditionType:   p.AuditionType,
		CreatedBy:      ec.dispatch.ActorID,
		ApplicationIDs: []uuid.UUID{ec.app.ID},
		CreatedAt:      d.now(),
	})
	return err
}

func (d *Dispatcher) deleteInvite(ctx context.Context, ec *effectContext) error {
	return d.invites.DeleteInvite(ctx, inviteIDFor(ec.dispatch.Key))
}

// sendInviteMessage messages the candidate from the inviting actor and links
// the message to the invite. The actor gets an in-app delivery notice when the
// candidate accepts in-app notifications.
func (d *Dispatcher) sendInviteMessage(ctx context.Context, ec *effectContext) error {
	candidate, err := ec.Candidate(ctx)
	if err != nil {
		return err
	}
	p := ec.dispatch.Payload
	msgID, err := d.messenger.SendMessage(ctx, ec.dispatch.ActorID, candidate.ID,
		p.Title, InviteMessageBody(candidate.FirstName, p))
	if err != nil {
		return fmt.Errorf("send invite message: %w", err)
	}
	if err := d.invites.LinkMessage(ctx, inviteIDFor(ec.dispatch.Key), msgID); err != nil {
		return fmt.Errorf("link invite message: %w", err)
	}
	if !candidate.Preferences.AppNotification {
		return nil
	}
	return d.notifier.SendInApp(ctx, ec.dispatch.ActorID,
		fmt.Sprintf("Your audition invite was delivered to %s.", candidate.FirstName),
		map[string]string{
			"message_id":     msgID.String(),
			"application_id": ec.app.ID.String(),
		})
}

func (d *Dispatcher) pushInvited(ctx context.Context, ec *effectContext) error {
	candidate, err := ec.Candidate(ctx)
	if err != nil {
		return err
	}
	return d.notifier.SendPush(ctx, candidate.ID, pushInvited, map[string]string{
		"job_id":    ec.app.JobID.String(),
		"invite_id": inviteIDFor(ec.dispatch.Key).String(),
	})
}

func (d *Dispatcher) emailInvited(ctx context.Context, ec *effectContext) error {
	candidate, err := ec.Candidate(ctx)
	if err != nil {
		return err
	}
	if !candidate.Preferences.EmailNotification || candidate.Email == "" {
		return nil
	}
	p := ec.dispatch.Payload
	return d.notifier.SendEmail(ctx, candidate.ID, EmailMessage{
		Template: "invited",
		Subject:  "Audition invite: " + p.Title,
		Data: map[string]string{
			"first_name":  candidate.FirstName,
			"title":       p.Title,
			"description": p.Description,
			"location":    p.Location,
			"date":        p.Date.Format(time.RFC1123),
		},
	})
}

func (d *Dispatcher) storeRejectionReason(ctx context.Context, ec *effectContext) error {
	return d.repo.SetRejectionReason(ctx, ec.app.ID, ec.dispatch.Payload.RejectionReason)
}

func (d *Dispatcher) clearRejectionReason(ctx context.Context, ec *effectContext) error {
	return d.repo.SetRejectionReason(ctx, ec.app.ID, "")
}

func (d *Dispatcher) pushRejected(ctx context.Context, ec *effectContext) error {
	candidate, err := ec.Candidate(ctx)
	if err != nil {
		return err
	}
	job, err := ec.Job(ctx)
	if err != nil {
		return err
	}
	return d.notifier.SendPush(ctx, candidate.ID, fmt.Sprintf(pushRejected, job.Title), map[string]string{
		"job_id":         ec.app.JobID.String(),
		"application_id": ec.app.ID.String(),
	})
}

func (d *Dispatcher) recordActivity(ctx context.Context, ec *effectContext) error {
	disp := ec.dispatch
	return d.activity.Record(ctx, Activity{
		ApplicationID: disp.ApplicationID,
		ActorID:       disp.ActorID,
		Transition:    disp.Transition,
		From:          disp.From,
		To:            disp.Target,
		Revision:      disp.Revision,
		At:            d.now(),
	})
}
