// Package store provides storage backends for ScreenBot.
//
// It persists participants, screening answers, follow-up evaluations,
// classifications, conversations and appointments. SQLite is the default
// backend; PostgreSQL is supported for shared deployments, and an
// in-memory store backs the tests.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epimex/screenbot/internal/models"
)

// Store is the persistence contract the conversation engine depends on.
// All operations are fail-soft from the engine's perspective: a storage
// error is logged and reported, but never blocks the interview.
type Store interface {
	CreateParticipant(p models.Participant) (string, error)
	GetParticipantByPhone(phone string) (*models.Participant, error)
	GetParticipantByID(id string) (*models.Participant, error)
	UpdateParticipantStatus(participantID, status string) error

	SaveScreeningAnswer(a models.ScreeningAnswer) error
	GetScreeningAnswers(participantID string) ([]models.ScreeningAnswer, error)

	SaveFollowUpAnswer(a models.FollowUpAnswer) error
	GetFollowUpAnswers(participantID string) ([]models.FollowUpAnswer, error)

	SaveClassification(participantID string, c models.ClassificationResult) error
	SaveConversation(c models.Conversation) error

	ScheduleAppointment(a models.Appointment) (int64, error)
	UpcomingAppointments(within time.Duration) ([]models.Appointment, error)
	MarkReminderSent(appointmentID int64) error
	ParticipantsAwaitingScheduling(olderThan time.Duration) ([]models.Participant, error)

	Stats() (models.Stats, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL-style DSNs and "sqlite"
// for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed Store used in tests and when no DSN is
// configured.
type InMemoryStore struct {
	mu            sync.RWMutex
	participants  map[string]models.Participant
	answers       map[string][]models.ScreeningAnswer
	followUps     map[string][]models.FollowUpAnswer
	classified    map[string]models.ClassificationResult
	conversations []models.Conversation
	appointments  []models.Appointment
	nextApptID    int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		participants: make(map[string]models.Participant),
		answers:      make(map[string][]models.ScreeningAnswer),
		followUps:    make(map[string][]models.FollowUpAnswer),
		classified:   make(map[string]models.ClassificationResult),
		nextApptID:   1,
	}
}

func (s *InMemoryStore) CreateParticipant(p models.Participant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants {
		if existing.Phone == p.Phone {
			return "", models.ErrParticipantExists
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}
	if p.Status == "" {
		p.Status = models.ParticipantStatusNew
	}
	s.participants[p.ID] = p
	return p.ID, nil
}

func (s *InMemoryStore) GetParticipantByPhone(phone string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.Phone == phone {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetParticipantByID(id string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.participants[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemoryStore) UpdateParticipantStatus(participantID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return models.ErrSessionNotFound
	}
	p.Status = status
	s.participants[participantID] = p
	return nil
}

func (s *InMemoryStore) SaveScreeningAnswer(a models.ScreeningAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	s.answers[a.ParticipantID] = append(s.answers[a.ParticipantID], a)
	return nil
}

func (s *InMemoryStore) GetScreeningAnswers(participantID string) ([]models.ScreeningAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ScreeningAnswer(nil), s.answers[participantID]...), nil
}

func (s *InMemoryStore) SaveFollowUpAnswer(a models.FollowUpAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	s.followUps[a.ParticipantID] = append(s.followUps[a.ParticipantID], a)
	return nil
}

func (s *InMemoryStore) GetFollowUpAnswers(participantID string) ([]models.FollowUpAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FollowUpAnswer(nil), s.followUps[participantID]...), nil
}

func (s *InMemoryStore) SaveClassification(participantID string, c models.ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classified[participantID] = c
	return nil
}

func (s *InMemoryStore) SaveConversation(c models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	s.conversations = append(s.conversations, c)
	return nil
}

func (s *InMemoryStore) ScheduleAppointment(a models.Appointment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextApptID
	s.nextApptID++
	if a.Status == "" {
		a.Status = models.AppointmentStatusScheduled
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.appointments = append(s.appointments, a)
	return a.ID, nil
}

func (s *InMemoryStore) UpcomingAppointments(within time.Duration) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.Status == models.AppointmentStatusScheduled && appointmentWithin(a, within) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkReminderSent(appointmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.appointments {
		if s.appointments[i].ID == appointmentID {
			s.appointments[i].ReminderSent = true
			return nil
		}
	}
	return models.ErrSessionNotFound
}

func (s *InMemoryStore) ParticipantsAwaitingScheduling(olderThan time.Duration) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-olderThan)
	var out []models.Participant
	for _, p := range s.participants {
		if p.Status == models.ParticipantStatusEligible && p.RegisteredAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Stats() (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.Stats{
		TotalParticipants: len(s.participants),
		ByClassification:  make(map[string]int),
		ByStatus:          make(map[string]int),
	}
	for id, p := range s.participants {
		stats.ByStatus[p.Status]++
		if c, ok := s.classified[id]; ok {
			stats.ByClassification[string(c.Category)]++
		}
	}
	for _, a := range s.appointments {
		if a.Status == models.AppointmentStatusScheduled {
			stats.ScheduledAppointments++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) Close() error { return nil }
