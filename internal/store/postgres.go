// This file implements the PostgreSQL-backed store for shared deployments.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/epimex/screenbot/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists screening data in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN and
// runs migrations on open.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateParticipant(p models.Participant) (string, error) {
	existing, err := s.GetParticipantByPhone(p.Phone)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", models.ErrParticipantExists
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.ParticipantStatusNew
	}
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}

	_, err = s.db.Exec(`INSERT INTO participantes (id, nombre, edad, sexo, telefono, email, ciudad, sede_preferida, fecha_registro, estado_proceso)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Age, p.Sex, p.Phone, p.Email, p.City, nilIfEmpty(p.PreferredSite), p.RegisteredAt, p.Status)
	if err != nil {
		slog.Error("PostgresStore CreateParticipant failed", "error", err, "phone", p.Phone)
		return "", fmt.Errorf("failed to insert participant: %w", err)
	}
	slog.Debug("PostgresStore CreateParticipant succeeded", "id", p.ID)
	return p.ID, nil
}

func (s *PostgresStore) GetParticipantByPhone(phone string) (*models.Participant, error) {
	row := s.db.QueryRow(`SELECT id, nombre, edad, sexo, telefono, email, ciudad, COALESCE(sede_preferida, ''), fecha_registro, estado_proceso
		FROM participantes WHERE telefono = $1`, phone)

	var p models.Participant
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Sex, &p.Phone, &p.Email, &p.City, &p.PreferredSite, &p.RegisteredAt, &p.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetParticipantByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetParticipantByID(id string) (*models.Participant, error) {
	row := s.db.QueryRow(`SELECT id, nombre, edad, sexo, telefono, email, ciudad, COALESCE(sede_preferida, ''), fecha_registro, estado_proceso
		FROM participantes WHERE id = $1`, id)

	var p models.Participant
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Sex, &p.Phone, &p.Email, &p.City, &p.PreferredSite, &p.RegisteredAt, &p.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetParticipantByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) UpdateParticipantStatus(participantID, status string) error {
	_, err := s.db.Exec(`UPDATE participantes SET estado_proceso = $1 WHERE id = $2`, status, participantID)
	if err != nil {
		slog.Error("PostgresStore UpdateParticipantStatus failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveScreeningAnswer(a models.ScreeningAnswer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO tamizaje_respuestas (participante_id, pregunta_numero, pregunta_texto, respuesta, requiere_seguimiento, fecha_respuesta)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ParticipantID, a.QuestionNumber, a.QuestionText, a.Answer, a.NeedsFollowUp, a.AnsweredAt)
	if err != nil {
		slog.Error("PostgresStore SaveScreeningAnswer failed", "error", err, "participantID", a.ParticipantID, "question", a.QuestionNumber)
		return fmt.Errorf("failed to insert screening answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetScreeningAnswers(participantID string) ([]models.ScreeningAnswer, error) {
	rows, err := s.db.Query(`SELECT participante_id, pregunta_numero, pregunta_texto, respuesta, requiere_seguimiento, fecha_respuesta
		FROM tamizaje_respuestas WHERE participante_id = $1 ORDER BY pregunta_numero`, participantID)
	if err != nil {
		slog.Error("PostgresStore GetScreeningAnswers query failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to query screening answers: %w", err)
	}
	defer rows.Close()

	var answers []models.ScreeningAnswer
	for rows.Next() {
		var a models.ScreeningAnswer
		if err := rows.Scan(&a.ParticipantID, &a.QuestionNumber, &a.QuestionText, &a.Answer, &a.NeedsFollowUp, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("failed to scan screening answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *PostgresStore) SaveFollowUpAnswer(a models.FollowUpAnswer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO psicosis_seguimiento (participante_id, tipo_evaluacion, pregunta_especifica, respuesta, puntuacion, fecha_evaluacion)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ParticipantID, string(a.Category), a.Question, a.Answer, a.Score, a.AnsweredAt)
	if err != nil {
		slog.Error("PostgresStore SaveFollowUpAnswer failed", "error", err, "participantID", a.ParticipantID, "category", a.Category)
		return fmt.Errorf("failed to insert follow-up answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFollowUpAnswers(participantID string) ([]models.FollowUpAnswer, error) {
	rows, err := s.db.Query(`SELECT participante_id, tipo_evaluacion, pregunta_especifica, respuesta, puntuacion, fecha_evaluacion
		FROM psicosis_seguimiento WHERE participante_id = $1 ORDER BY id`, participantID)
	if err != nil {
		slog.Error("PostgresStore GetFollowUpAnswers query failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to query follow-up answers: %w", err)
	}
	defer rows.Close()

	var answers []models.FollowUpAnswer
	for rows.Next() {
		var a models.FollowUpAnswer
		var category string
		if err := rows.Scan(&a.ParticipantID, &category, &a.Question, &a.Answer, &a.Score, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow-up answer: %w", err)
		}
		a.Category = models.FollowUpCategory(category)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *PostgresStore) SaveClassification(participantID string, c models.ClassificationResult) error {
	satisfied, err := json.Marshal(c.SatisfiedCriteria)
	if err != nil {
		return fmt.Errorf("failed to marshal satisfied criteria: %w", err)
	}
	missing, err := json.Marshal(c.MissingCriteria)
	if err != nil {
		return fmt.Errorf("failed to marshal missing criteria: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO clasificacion_participantes
		(participante_id, tipo_clasificado, puntuacion_alucinaciones, puntuacion_delirios, puntuacion_total, criterios_cumplidos, criterios_faltantes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		participantID, string(c.Category), c.Score.Hallucinations, c.Score.Delusions, c.Score.Total, string(satisfied), string(missing))
	if err != nil {
		slog.Error("PostgresStore SaveClassification insert failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to insert classification: %w", err)
	}

	_, err = s.db.Exec(`UPDATE participantes SET clasificacion = $1, elegible = $2 WHERE id = $3`,
		string(c.Category), c.Eligible, participantID)
	if err != nil {
		slog.Error("PostgresStore SaveClassification update failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to update participant classification: %w", err)
	}
	slog.Debug("PostgresStore SaveClassification succeeded", "participantID", participantID, "category", c.Category)
	return nil
}

func (s *PostgresStore) SaveConversation(c models.Conversation) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO conversaciones (participante_id, telefono, mensaje_usuario, respuesta_bot, estado_conversacion, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		nilIfEmpty(c.ParticipantID), c.Phone, c.UserMessage, c.BotReply, string(c.Phase), c.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "phone", c.Phone)
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ScheduleAppointment(a models.Appointment) (int64, error) {
	if a.Status == "" {
		a.Status = models.AppointmentStatusScheduled
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	var id int64
	err := s.db.QueryRow(`INSERT INTO citas_agendadas (participante_id, fecha_cita, hora_cita, sede, estado_cita, recordatorio_enviado, fecha_agendamiento)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.ParticipantID, a.Date, a.Time, a.Site, a.Status, a.ReminderSent, a.CreatedAt).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore ScheduleAppointment failed", "error", err, "participantID", a.ParticipantID)
		return 0, fmt.Errorf("failed to insert appointment: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpcomingAppointments(within time.Duration) ([]models.Appointment, error) {
	rows, err := s.db.Query(`SELECT id, participante_id, fecha_cita, hora_cita, sede, estado_cita, recordatorio_enviado, fecha_agendamiento
		FROM citas_agendadas WHERE estado_cita = $1`, models.AppointmentStatusScheduled)
	if err != nil {
		slog.Error("PostgresStore UpcomingAppointments query failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.ParticipantID, &a.Date, &a.Time, &a.Site, &a.Status, &a.ReminderSent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		if appointmentWithin(a, within) {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkReminderSent(appointmentID int64) error {
	_, err := s.db.Exec(`UPDATE citas_agendadas SET recordatorio_enviado = TRUE WHERE id = $1`, appointmentID)
	if err != nil {
		slog.Error("PostgresStore MarkReminderSent failed", "error", err, "appointmentID", appointmentID)
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) ParticipantsAwaitingScheduling(olderThan time.Duration) ([]models.Participant, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.db.Query(`SELECT id, nombre, edad, sexo, telefono, email, ciudad, COALESCE(sede_preferida, ''), fecha_registro, estado_proceso
		FROM participantes WHERE estado_proceso = $1 AND fecha_registro < $2`, models.ParticipantStatusEligible, cutoff)
	if err != nil {
		slog.Error("PostgresStore ParticipantsAwaitingScheduling query failed", "error", err)
		return nil, fmt.Errorf("failed to query pending participants: %w", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Sex, &p.Phone, &p.Email, &p.City, &p.PreferredSite, &p.RegisteredAt, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats() (models.Stats, error) {
	stats := models.Stats{
		ByClassification: make(map[string]int),
		ByStatus:         make(map[string]int),
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM participantes`).Scan(&stats.TotalParticipants); err != nil {
		return stats, fmt.Errorf("failed to count participants: %w", err)
	}
	if err := countGrouped(s.db, `SELECT clasificacion, COUNT(*) FROM participantes WHERE clasificacion IS NOT NULL GROUP BY clasificacion`, stats.ByClassification); err != nil {
		return stats, err
	}
	if err := countGrouped(s.db, `SELECT estado_proceso, COUNT(*) FROM participantes GROUP BY estado_proceso`, stats.ByStatus); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM citas_agendadas WHERE estado_cita = $1`, models.AppointmentStatusScheduled).Scan(&stats.ScheduledAppointments); err != nil {
		return stats, fmt.Errorf("failed to count appointments: %w", err)
	}
	return stats, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
