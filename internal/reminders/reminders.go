// Package reminders runs the recurring follow-up jobs: appointment
// reminders for scheduled visits and nudges for eligible participants who
// never booked a visit.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/epimex/screenbot/internal/models"
	"github.com/epimex/screenbot/internal/store"
)

const (
	// appointmentReminderSpec checks upcoming appointments every hour.
	appointmentReminderSpec = "0 * * * *"
	// schedulingFollowUpSpec nudges unscheduled eligible participants
	// every six hours.
	schedulingFollowUpSpec = "0 */6 * * *"
	// cleanupSpec prunes stale follow-up bookkeeping daily at 02:00.
	cleanupSpec = "0 2 * * *"

	// followUpRetention is how long follow-up bookkeeping is kept before
	// the cleanup job drops it.
	followUpRetention = 30 * 24 * time.Hour

	// DefaultAppointmentWindow is how far ahead appointment reminders
	// look.
	DefaultAppointmentWindow = 24 * time.Hour
	// DefaultSchedulingCutoff is how long a participant must have been
	// eligible before follow-up nudges start.
	DefaultSchedulingCutoff = 24 * time.Hour
	// DefaultFollowUpInterval is the minimum gap between two follow-up
	// nudges to the same participant.
	DefaultFollowUpInterval = 72 * time.Hour

	sendTimeout = 30 * time.Second
)

// Reminder message kinds passed to the generator.
const (
	KindAppointment = "cita"
	KindFollowUp    = "seguimiento"
)

// MessageSender delivers reminder texts. messaging.Service satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Generator produces reminder texts. genai.Client satisfies it.
type Generator interface {
	ReminderMessage(ctx context.Context, kind, name, appointmentInfo string) (string, error)
}

// Opts holds configuration options for the reminder service.
type Opts struct {
	AppointmentWindow time.Duration
	SchedulingCutoff  time.Duration
	FollowUpInterval  time.Duration
}

// Option defines a configuration option for the reminder service.
type Option func(*Opts)

// WithAppointmentWindow sets how far ahead appointment reminders look.
func WithAppointmentWindow(d time.Duration) Option {
	return func(o *Opts) { o.AppointmentWindow = d }
}

// WithSchedulingCutoff sets how long a participant must be eligible before
// follow-up nudges start.
func WithSchedulingCutoff(d time.Duration) Option {
	return func(o *Opts) { o.SchedulingCutoff = d }
}

// WithFollowUpInterval sets the minimum gap between follow-up nudges to
// the same participant.
func WithFollowUpInterval(d time.Duration) Option {
	return func(o *Opts) { o.FollowUpInterval = d }
}

// Service owns the cron scheduler and the reminder jobs. Every job is
// fail-soft: a failed send or query is logged and retried on the next
// tick.
type Service struct {
	store  store.Store
	gen    Generator
	sender MessageSender
	cfg    Opts
	cron   *cron.Cron

	mu           sync.Mutex
	lastFollowUp map[string]time.Time // participant ID -> last nudge
}

// NewService creates a reminder service. It does not start any jobs.
func NewService(st store.Store, gen Generator, sender MessageSender, opts ...Option) *Service {
	cfg := Opts{
		AppointmentWindow: DefaultAppointmentWindow,
		SchedulingCutoff:  DefaultSchedulingCutoff,
		FollowUpInterval:  DefaultFollowUpInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Service{
		store:        st,
		gen:          gen,
		sender:       sender,
		cfg:          cfg,
		cron:         c,
		lastFollowUp: make(map[string]time.Time),
	}
}

// Start registers the recurring jobs and starts the scheduler.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(appointmentReminderSpec, func() { s.RunAppointmentReminders(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule appointment reminders: %w", err)
	}
	if _, err := s.cron.AddFunc(schedulingFollowUpSpec, func() { s.RunSchedulingFollowUps(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule participation follow-ups: %w", err)
	}
	if _, err := s.cron.AddFunc(cleanupSpec, s.RunCleanup); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	s.cron.Start()
	slog.Info("Reminder service started",
		"appointment_window", s.cfg.AppointmentWindow,
		"scheduling_cutoff", s.cfg.SchedulingCutoff)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Reminder service stopped")
}

// RunAppointmentReminders sends a reminder for each upcoming appointment
// that has not been reminded yet, then marks it as reminded.
func (s *Service) RunAppointmentReminders(ctx context.Context) {
	appointments, err := s.store.UpcomingAppointments(s.cfg.AppointmentWindow)
	if err != nil {
		slog.Error("Reminders failed to query upcoming appointments", "error", err)
		return
	}

	sent := 0
	for _, appt := range appointments {
		if appt.ReminderSent {
			continue
		}
		if s.remindAppointment(ctx, appt) {
			sent++
		}
	}
	slog.Info("Appointment reminder pass completed", "upcoming", len(appointments), "sent", sent)
}

func (s *Service) remindAppointment(ctx context.Context, appt models.Appointment) bool {
	participant, err := s.store.GetParticipantByID(appt.ParticipantID)
	if err != nil {
		slog.Error("Reminders failed to load participant", "error", err, "participant_id", appt.ParticipantID)
		return false
	}
	if participant == nil {
		slog.Warn("Appointment references unknown participant", "appointment_id", appt.ID, "participant_id", appt.ParticipantID)
		return false
	}

	info := fmt.Sprintf("fecha: %s, hora: %s, sede: %s", appt.Date, appt.Time, appt.Site)
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	body, err := s.gen.ReminderMessage(sendCtx, KindAppointment, participant.Name, info)
	if err != nil {
		slog.Error("Reminders failed to generate appointment message", "error", err, "participant_id", participant.ID)
		return false
	}
	if err := s.sender.SendMessage(sendCtx, participant.Phone, body); err != nil {
		slog.Error("Reminders failed to send appointment reminder", "error", err, "participant_id", participant.ID)
		return false
	}
	if err := s.store.MarkReminderSent(appt.ID); err != nil {
		// The reminder went out; worst case the next pass repeats it.
		slog.Error("Reminders failed to mark reminder sent", "error", err, "appointment_id", appt.ID)
	}
	slog.Info("Appointment reminder sent", "participant_id", participant.ID, "appointment_id", appt.ID)
	return true
}

// RunSchedulingFollowUps nudges eligible participants who have not booked
// a visit, at most once per follow-up interval.
func (s *Service) RunSchedulingFollowUps(ctx context.Context) {
	participants, err := s.store.ParticipantsAwaitingScheduling(s.cfg.SchedulingCutoff)
	if err != nil {
		slog.Error("Reminders failed to query participants awaiting scheduling", "error", err)
		return
	}

	sent := 0
	for _, p := range participants {
		if !s.dueForFollowUp(p.ID) {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		body, err := s.gen.ReminderMessage(sendCtx, KindFollowUp, p.Name, "")
		if err != nil {
			cancel()
			slog.Error("Reminders failed to generate follow-up message", "error", err, "participant_id", p.ID)
			continue
		}
		if err := s.sender.SendMessage(sendCtx, p.Phone, body); err != nil {
			cancel()
			slog.Error("Reminders failed to send follow-up", "error", err, "participant_id", p.ID)
			continue
		}
		cancel()

		s.recordFollowUp(p.ID)
		sent++
		slog.Info("Scheduling follow-up sent", "participant_id", p.ID)
	}
	slog.Info("Scheduling follow-up pass completed", "pending", len(participants), "sent", sent)
}

// RunCleanup drops follow-up bookkeeping older than the retention window
// so the table does not grow unbounded over a long recruitment campaign.
func (s *Service) RunCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-followUpRetention)
	pruned := 0
	for id, last := range s.lastFollowUp {
		if last.Before(cutoff) {
			delete(s.lastFollowUp, id)
			pruned++
		}
	}
	slog.Info("Reminder cleanup completed", "pruned", pruned)
}

func (s *Service) dueForFollowUp(participantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFollowUp[participantID]
	return !ok || time.Since(last) >= s.cfg.FollowUpInterval
}

func (s *Service) recordFollowUp(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFollowUp[participantID] = time.Now()
}
