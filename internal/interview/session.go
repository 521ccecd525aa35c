package interview

import (
	"time"

	"github.com/epimex/screenbot/internal/models"
)

// Session is the mutable per-respondent interview progress record. Sessions
// live only in process memory; the durable facts they accumulate are handed
// to the store as they are produced. A session is created on the first
// message from an unseen phone number and removed when the interview
// reaches the terminal phase.
type Session struct {
	Phone         string
	ParticipantID string
	Phase         models.Phase

	// Greeted marks that the welcome menu was already shown in the
	// initial phase.
	Greeted bool

	// Registration scratch. RegistrationStep indexes the fixed field
	// order name, age, sex, email, city.
	RegistrationStep int
	Draft            models.Participant

	// CurrentQuestion is the 1-based number of the pending main
	// screening question.
	CurrentQuestion int

	// Fields accumulates every extracted field across the interview.
	Fields map[string]string

	FollowUpCategory models.FollowUpCategory
	FollowUpIndex    int
	// PendingFollowUp is set once when the trigger question is answered
	// affirmatively and never cleared.
	PendingFollowUp bool
	// FollowUpAnswers keeps the raw scored answers so the aggregate
	// score can be recomputed at classification time.
	FollowUpAnswers []models.FollowUpAnswer

	// StorageDegraded is set when a persistence call failed during this
	// session; replies then carry a data-loss notice.
	StorageDegraded bool

	LastActivity time.Time
}

func newSession(phone string) *Session {
	return &Session{
		Phone:        phone,
		Phase:        models.PhaseInitial,
		Fields:       make(map[string]string),
		LastActivity: time.Now(),
	}
}
