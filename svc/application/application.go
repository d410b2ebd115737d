package application

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Application is one candidate's relationship to one job.
// JobID and UserID never change after creation.
type Application struct {
	ID              uuid.UUID `json:"id"`
	JobID           uuid.UUID `json:"job_id"`
	UserID          uuid.UUID `json:"user_id"`
	State           State     `json:"state"`
	Revision        int64     `json:"revision"`
	RejectionReason string    `json:"rejection_reason,omitempty"` // set only in StateRejected
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsTerminal reports whether no further transitions are possible.
func (a Application) IsTerminal() bool {
	return lifecycle.IsTerminal(a.State)
}

// NewApplication returns a fresh application in the initial state at revision 1.
func NewApplication(jobID, userID uuid.UUID, now time.Time) Application {
	return Application{
		ID:        uuid.New(),
		JobID:     jobID,
		UserID:    userID,
		State:     lifecycle.Initial(),
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type AuditionType string

const (
	AuditionTelevision AuditionType = "television"
	AuditionPrint      AuditionType = "print"
	AuditionMovie      AuditionType = "movie"
	AuditionTheatre    AuditionType = "theatre"
	AuditionDigital    AuditionType = "digital"
)

var auditionTypes = []AuditionType{
	AuditionTelevision, AuditionPrint, AuditionMovie, AuditionTheatre, AuditionDigital,
}

// AuditionInvite is a scheduled audition covering one or more applications.
// Only MessageID may change after creation.
type AuditionInvite struct {
	ID             uuid.UUID    `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Location       string       `json:"location"`
	Date           time.Time    `json:"date"`
	AuditionType   AuditionType `json:"audition_type,omitempty"`
	MessageID      *uuid.UUID   `json:"message_id,omitempty"`
	CreatedBy      uuid.UUID    `json:"created_by"`
	ApplicationIDs []uuid.UUID  `json:"application_ids"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Payload carries caller-supplied data some transitions need.
// Invite fields feed the invited effects, RejectionReason the rejected ones.
type Payload struct {
	Title           string       `json:"title,omitempty"`
	Description     string       `json:"description,omitempty"`
	Location        string       `json:"location,omitempty"`
	Date            time.Time    `json:"date,omitzero"`
	AuditionType    AuditionType `json:"audition_type,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
}

// InviteMessageBody renders the direct message sent with an audition invite.
func InviteMessageBody(firstName string, p Payload) string {
	return fmt.Sprintf("Hi %s, %s at location %s on %s",
		firstName, p.Description, p.Location, p.Date.Format(time.RFC1123))
}

// Activity is one entry in an application's history.
type Activity struct {
	ApplicationID uuid.UUID  `json:"application_id"`
	ActorID       uuid.UUID  `json:"actor_id"`
	Transition    Transition `json:"transition"`
	From          State      `json:"from"`
	To            State      `json:"to"`
	Revision      int64      `json:"revision"`
	At            time.Time  `json:"at"`
}
