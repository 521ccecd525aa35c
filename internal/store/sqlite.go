// This file implements the SQLite-backed store, the default backend.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/epimex/screenbot/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists screening data in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is
// a file path; its directory is created if missing and migrations are run
// on open.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateParticipant(p models.Participant) (string, error) {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Age, p.Sex, p.Phone, p.Email, p.City, nilIfEmpty(p.PreferredSite), p.RegisteredAt, p.Status)
	if err != nil {
		slog.Error("SQLiteStore CreateParticipant failed", "error", err, "phone", p.Phone)
		return "", fmt.Errorf("failed to insert participant: %w", err)
	}
	slog.Debug("SQLiteStore CreateParticipant succeeded", "id", p.ID)
	return p.ID, nil
}

func (s *SQLiteStore) GetParticipantByPhone(phone string) (*models.Participant, error) {
	row := s.db.QueryRow(`SELECT id, nombre, edad, sexo, telefono, email, ciudad, COALESCE(sede_preferida, ''), fecha_registro, estado_proceso
		FROM participantes WHERE telefono = ?`, phone)

	var p models.Participant
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Sex, &p.Phone, &p.Email, &p.City, &p.PreferredSite, &p.RegisteredAt, &p.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetParticipantByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetParticipantByID(id string) (*models.Participant, error) {
	row := s.db.QueryRow(`SELECT id, nombre, edad, sexo, telefono, email, ciudad, COALESCE(sede_preferida, ''), fecha_registro, estado_proceso
		FROM participantes WHERE id = ?`, id)

	var p models.Participant
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Sex, &p.Phone, &p.Email, &p.City, &p.PreferredSite, &p.RegisteredAt, &p.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetParticipantByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) UpdateParticipantStatus(participantID, status string) error {
	_, err := s.db.Exec(`UPDATE participantes SET estado_proceso = ? WHERE id = ?`, status, participantID)
	if err != nil {
		slog.Error("SQLiteStore UpdateParticipantStatus failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveScreeningAnswer(a models.ScreeningAnswer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO tamizaje_respuestas (participante_id, pregunta_numero, pregunta_texto, respuesta, requiere_seguimiento, fecha_respuesta)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ParticipantID, a.QuestionNumber, a.QuestionText, a.Answer, a.NeedsFollowUp, a.AnsweredAt)
	if err != nil {
		slog.Error("SQLiteStore SaveScreeningAnswer failed", "error", err, "participantID", a.ParticipantID, "question", a.QuestionNumber)
		return fmt.Errorf("failed to insert screening answer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetScreeningAnswers(participantID string) ([]models.ScreeningAnswer, error) {
	rows, err := s.db.Query(`SELECT participante_id, pregunta_numero, pregunta_texto, respuesta, requiere_seguimiento, fecha_respuesta
		FROM tamizaje_respuestas WHERE participante_id = ? ORDER BY pregunta_numero`, participantID)
	if err != nil {
		slog.Error("SQLiteStore GetScreeningAnswers query failed", "error", err, "participantID", participantID)
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

func (s *SQLiteStore) SaveFollowUpAnswer(a models.FollowUpAnswer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO psicosis_seguimiento (participante_id, tipo_evaluacion, pregunta_especifica, respuesta, puntuacion, fecha_evaluacion)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ParticipantID, string(a.Category), a.Question, a.Answer, a.Score, a.AnsweredAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFollowUpAnswer failed", "error", err, "participantID", a.ParticipantID, "category", a.Category)
		return fmt.Errorf("failed to insert follow-up answer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFollowUpAnswers(participantID string) ([]models.FollowUpAnswer, error) {
	rows, err := s.db.Query(`SELECT participante_id, tipo_evaluacion, pregunta_especifica, respuesta, puntuacion, fecha_evaluacion
		FROM psicosis_seguimiento WHERE participante_id = ? ORDER BY id`, participantID)
	if err != nil {
		slog.Error("SQLiteStore GetFollowUpAnswers query failed", "error", err, "participantID", participantID)
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

func (s *SQLiteStore) SaveClassification(participantID string, c models.ClassificationResult) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		participantID, string(c.Category), c.Score.Hallucinations, c.Score.Delusions, c.Score.Total, string(satisfied), string(missing))
	if err != nil {
		slog.Error("SQLiteStore SaveClassification insert failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to insert classification: %w", err)
	}

	_, err = s.db.Exec(`UPDATE participantes SET clasificacion = ?, elegible = ? WHERE id = ?`,
		string(c.Category), c.Eligible, participantID)
	if err != nil {
		slog.Error("SQLiteStore SaveClassification update failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to update participant classification: %w", err)
	}
	slog.Debug("SQLiteStore SaveClassification succeeded", "participantID", participantID, "category", c.Category)
	return nil
}

func (s *SQLiteStore) SaveConversation(c models.Conversation) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO conversaciones (participante_id, telefono, mensaje_usuario, respuesta_bot, estado_conversacion, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nilIfEmpty(c.ParticipantID), c.Phone, c.UserMessage, c.BotReply, string(c.Phase), c.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "phone", c.Phone)
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ScheduleAppointment(a models.Appointment) (int64, error) {
	if a.Status == "" {
		a.Status = models.AppointmentStatusScheduled
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(`INSERT INTO citas_agendadas (participante_id, fecha_cita, hora_cita, sede, estado_cita, recordatorio_enviado, fecha_agendamiento)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ParticipantID, a.Date, a.Time, a.Site, a.Status, a.ReminderSent, a.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore ScheduleAppointment failed", "error", err, "participantID", a.ParticipantID)
		return 0, fmt.Errorf("failed to insert appointment: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpcomingAppointments(within time.Duration) ([]models.Appointment, error) {
	rows, err := s.db.Query(`SELECT id, participante_id, fecha_cita, hora_cita, sede, estado_cita, recordatorio_enviado, fecha_agendamiento
		FROM citas_agendadas WHERE estado_cita = ?`, models.AppointmentStatusScheduled)
	if err != nil {
		slog.Error("SQLiteStore UpcomingAppointments query failed", "error", err)
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

func (s *SQLiteStore) MarkReminderSent(appointmentID int64) error {
	_, err := s.db.Exec(`UPDATE citas_agendadas SET recordatorio_enviado = 1 WHERE id = ?`, appointmentID)
	if err != nil {
		slog.Error("SQLiteStore MarkReminderSent failed", "error", err, "appointmentID", appointmentID)
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ParticipantsAwaitingScheduling(olderThan time.Duration) ([]models.Participant, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.db.Query(`SELECT id, nombre, edad, sexo, telefono, email, ciudad, COALESCE(sede_preferida, ''), fecha_registro, estado_proceso
		FROM participantes WHERE estado_proceso = ? AND fecha_registro < ?`, models.ParticipantStatusEligible, cutoff)
	if err != nil {
		slog.Error("SQLiteStore ParticipantsAwaitingScheduling query failed", "error", err)
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

func (s *SQLiteStore) Stats() (models.Stats, error) {
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
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM citas_agendadas WHERE estado_cita = ?`, models.AppointmentStatusScheduled).Scan(&stats.ScheduledAppointments); err != nil {
		return stats, fmt.Errorf("failed to count appointments: %w", err)
	}
	return stats, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
