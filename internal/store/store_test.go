package store

import (
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/epimex/screenbot/internal/models"
)

func TestInMemoryStoreParticipants(t *testing.T) {
	s := NewInMemoryStore()
	id, err := s.CreateParticipant(models.Participant{
		Name: "Ana", Age: 18, Sex: "femenino", Phone: "+5215512345678",
		Email: "ana@example.com", City: "CDMX",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated participant ID")
	}

	_, err = s.CreateParticipant(models.Participant{Phone: "+5215512345678"})
	if err != models.ErrParticipantExists {
		t.Errorf("expected ErrParticipantExists for duplicate phone, got %v", err)
	}

	p, err := s.GetParticipantByPhone("+5215512345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Name != "Ana" {
		t.Error("participant not stored or retrieved correctly")
	}
	if p.Status != models.ParticipantStatusNew {
		t.Errorf("expected default status %q, got %q", models.ParticipantStatusNew, p.Status)
	}

	missing, err := s.GetParticipantByPhone("+5210000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown phone")
	}

	byID, err := s.GetParticipantByID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byID == nil || byID.Phone != "+5215512345678" {
		t.Error("participant not retrievable by ID")
	}
	if unknown, _ := s.GetParticipantByID("no-such-id"); unknown != nil {
		t.Error("expected nil for unknown ID")
	}

	if err := s.UpdateParticipantStatus(id, models.ParticipantStatusEligible); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = s.GetParticipantByPhone("+5215512345678")
	if p.Status != models.ParticipantStatusEligible {
		t.Errorf("status not updated, got %q", p.Status)
	}
}

func TestInMemoryStoreAnswersAndClassification(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.CreateParticipant(models.Participant{Phone: "+521"})

	err := s.SaveScreeningAnswer(models.ScreeningAnswer{
		ParticipantID: id, QuestionNumber: 1, Answer: "18 femenino",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	answers, err := s.GetScreeningAnswers(id)
	if err != nil || len(answers) != 1 {
		t.Fatalf("expected one screening answer, got %d (err %v)", len(answers), err)
	}

	err = s.SaveFollowUpAnswer(models.FollowUpAnswer{
		ParticipantID: id, Category: models.FollowUpHallucinations, Answer: "sí, era real", Score: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fus, err := s.GetFollowUpAnswers(id)
	if err != nil || len(fus) != 1 || fus[0].Score != 2 {
		t.Fatalf("follow-up answer not stored correctly: %v %v", fus, err)
	}

	err = s.SaveClassification(id, models.ClassificationResult{
		Category: models.EligibilityProband, Eligible: true,
		Score: models.FollowUpScore{Hallucinations: 3, Delusions: 1, Total: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalParticipants != 1 {
		t.Errorf("expected 1 participant, got %d", stats.TotalParticipants)
	}
	if stats.ByClassification[string(models.EligibilityProband)] != 1 {
		t.Error("classification missing from stats")
	}
}

func TestInMemoryStoreAppointments(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.CreateParticipant(models.Participant{Phone: "+521"})

	soon := time.Now().Add(2 * time.Hour)
	apptID, err := s.ScheduleAppointment(models.Appointment{
		ParticipantID: id,
		Date:          soon.Format("2006-01-02"),
		Time:          soon.Format("15:04"),
		Site:          "INPRFM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upcoming, err := s.UpcomingAppointments(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(upcoming) != 1 {
		t.Fatalf("expected one upcoming appointment, got %d", len(upcoming))
	}

	none, err := s.UpcomingAppointments(30 * time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no appointments within 30m, got %d", len(none))
	}

	if err := s.MarkReminderSent(apptID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "screenbot.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open SQLite store: %v", err)
	}
	defer s.Close()

	id, err := s.CreateParticipant(models.Participant{
		Name: "Luis", Age: 25, Sex: "masculino", Phone: "+5215587654321",
		Email: "luis@example.com", City: "Guadalajara",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := s.GetParticipantByPhone("+5215587654321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.ID != id || p.Name != "Luis" {
		t.Error("participant not stored or retrieved correctly in SQLite")
	}

	byID, err := s.GetParticipantByID(id)
	if err != nil || byID == nil || byID.Name != "Luis" {
		t.Errorf("participant not retrievable by ID in SQLite: %v %v", byID, err)
	}

	if _, err := s.CreateParticipant(models.Participant{Phone: "+5215587654321"}); err != models.ErrParticipantExists {
		t.Errorf("expected ErrParticipantExists, got %v", err)
	}

	if err := s.SaveScreeningAnswer(models.ScreeningAnswer{ParticipantID: id, QuestionNumber: 2, QuestionText: "nacionalidad", Answer: "sí, todos mexicanos"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	answers, err := s.GetScreeningAnswers(id)
	if err != nil || len(answers) != 1 || answers[0].QuestionNumber != 2 {
		t.Fatalf("screening answer round trip failed: %v %v", answers, err)
	}

	c := models.ClassificationResult{
		Category: models.EligibilityRelative, Eligible: true,
		SatisfiedCriteria: []string{"Familiar de participante"},
	}
	if err := s.SaveClassification(id, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalParticipants != 1 {
		t.Errorf("expected 1 participant, got %d", stats.TotalParticipants)
	}
	if stats.ByClassification[string(models.EligibilityRelative)] != 1 {
		t.Error("classification missing from SQLite stats")
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to run.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pg, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pg.Close()

	pg.db.Exec("DELETE FROM conversaciones")
	pg.db.Exec("DELETE FROM tamizaje_respuestas")
	pg.db.Exec("DELETE FROM participantes")

	id, err := pg.CreateParticipant(models.Participant{Phone: "+5215599999999", Name: "Eva"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := pg.GetParticipantByPhone("+5215599999999")
	if err != nil || p == nil || p.ID != id {
		t.Fatalf("participant round trip failed in Postgres: %v %v", p, err)
	}
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost/db":   "postgres",
		"postgresql://u:p@localhost/db": "postgres",
		"host=localhost user=screenbot": "postgres",
		"/var/lib/screenbot/bot.db":     "sqlite",
		"bot.db":                        "sqlite",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
