package application

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DispatchStatus tracks a dispatch through its journal lifecycle.
type DispatchStatus string

const (
	DispatchPrepared   DispatchStatus = "prepared"
	DispatchCommitted  DispatchStatus = "committed"
	DispatchCompleted  DispatchStatus = "completed"
	DispatchRolledBack DispatchStatus = "rolled_back"
	DispatchAbandoned  DispatchStatus = "abandoned"
)

// Finished reports whether the dispatch needs no more work.
func (s DispatchStatus) Finished() bool {
	return s == DispatchCompleted || s == DispatchRolledBack || s == DispatchAbandoned
}

// Dispatch is the journal record for the side effects of one committed
// transition. Key identifies the (application, target, revision) triple and
// doubles as the idempotency key of every effect in it.
type Dispatch struct {
	Key           string         `json:"key"`
	Attempt       uuid.UUID      `json:"attempt"`
	ApplicationID uuid.UUID      `json:"application_id"`
	ActorID       uuid.UUID      `json:"actor_id"`
	Transition    Transition     `json:"transition"`
	From          State          `json:"from"`
	Target        State          `json:"target"`
	Revision      int64          `json:"revision"`
	Payload       Payload        `json:"payload"`
	ChargeTokens  bool           `json:"charge_tokens"`
	Status        DispatchStatus `json:"status"`
	Done          []string       `json:"done"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// DispatchKey derives the idempotency key for entering target at revision.
func DispatchKey(applicationID uuid.UUID, target State, revision int64) string {
	return fmt.Sprintf("%s:%s:%d", applicationID, target, revision)
}

// IsDone reports whether effect already ran for this dispatch.
func (d Dispatch) IsDone(effect string) bool {
	return slices.Contains(d.Done, effect)
}

// inviteNamespace seeds deterministic invite ids so a resumed dispatch
// finds the invite it created before instead of creating another.
var inviteNamespace = uuid.MustParse("6f1c9f5e-58a4-4c2e-9d0e-3b7a1f0c2d11")

func inviteIDFor(key string) uuid.UUID {
	return uuid.NewSHA1(inviteNamespace, []byte(key))
}
