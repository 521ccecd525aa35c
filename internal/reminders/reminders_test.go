package reminders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/epimex/screenbot/internal/models"
	"github.com/epimex/screenbot/internal/store"
)

type templateGenerator struct{}

func (templateGenerator) ReminderMessage(ctx context.Context, kind, name, appointmentInfo string) (string, error) {
	return "Hola " + name + ", recordatorio de " + kind + ". " + appointmentInfo, nil
}

type recordingSender struct {
	sent []string
}

func (s *recordingSender) SendMessage(ctx context.Context, to string, body string) error {
	s.sent = append(s.sent, to+"|"+body)
	return nil
}

func seedEligibleParticipant(t *testing.T, st store.Store, registeredAt time.Time) string {
	t.Helper()
	id, err := st.CreateParticipant(models.Participant{
		Name:         "Ana García",
		Age:          16,
		Sex:          "femenino",
		Phone:        "+5215511111111",
		Email:        "ana@epimex.net",
		City:         "CDMX",
		Status:       models.ParticipantStatusEligible,
		RegisteredAt: registeredAt,
	})
	if err != nil {
		t.Fatalf("CreateParticipant failed: %v", err)
	}
	return id
}

func TestAppointmentRemindersSendOnceAndMark(t *testing.T) {
	st := store.NewInMemoryStore()
	id := seedEligibleParticipant(t, st, time.Now().Add(-48*time.Hour))

	soon := time.Now().Add(2 * time.Hour)
	apptID, err := st.ScheduleAppointment(models.Appointment{
		ParticipantID: id,
		Date:          soon.Format("2006-01-02"),
		Time:          soon.Format("15:04"),
		Site:          "INPRFM",
	})
	if err != nil {
		t.Fatalf("ScheduleAppointment failed: %v", err)
	}

	sender := &recordingSender{}
	svc := NewService(st, templateGenerator{}, sender)

	svc.RunAppointmentReminders(context.Background())
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d reminders, want 1", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0], "Ana García") || !strings.Contains(sender.sent[0], "INPRFM") {
		t.Errorf("reminder missing participant or site: %q", sender.sent[0])
	}

	// The appointment is now marked, so a second pass sends nothing.
	svc.RunAppointmentReminders(context.Background())
	if len(sender.sent) != 1 {
		t.Errorf("second pass re-sent reminder, total %d", len(sender.sent))
	}

	appointments, err := st.UpcomingAppointments(24 * time.Hour)
	if err != nil {
		t.Fatalf("UpcomingAppointments failed: %v", err)
	}
	for _, a := range appointments {
		if a.ID == apptID && !a.ReminderSent {
			t.Error("appointment not marked as reminded")
		}
	}
}

func TestSchedulingFollowUpsRespectInterval(t *testing.T) {
	st := store.NewInMemoryStore()
	seedEligibleParticipant(t, st, time.Now().Add(-48*time.Hour))

	sender := &recordingSender{}
	svc := NewService(st, templateGenerator{}, sender)

	svc.RunSchedulingFollowUps(context.Background())
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d follow-ups, want 1", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0], "seguimiento") {
		t.Errorf("follow-up has wrong kind: %q", sender.sent[0])
	}

	// Within the follow-up interval nothing more goes out.
	svc.RunSchedulingFollowUps(context.Background())
	if len(sender.sent) != 1 {
		t.Errorf("follow-up repeated within interval, total %d", len(sender.sent))
	}
}

func TestSchedulingFollowUpsSkipRecentRegistrations(t *testing.T) {
	st := store.NewInMemoryStore()
	seedEligibleParticipant(t, st, time.Now().Add(-time.Hour))

	sender := &recordingSender{}
	svc := NewService(st, templateGenerator{}, sender)

	svc.RunSchedulingFollowUps(context.Background())
	if len(sender.sent) != 0 {
		t.Errorf("nudged a participant inside the cutoff, sent %d", len(sender.sent))
	}
}
