// Package models defines the core data structures for ScreenBot.
//
// It includes the screening question bank types, participant records, and
// classification results shared across modules.
package models

import (
	"errors"
	"time"
)

// QuestionCategory tags a screening question with its semantic type,
// which selects the validation strategy applied to answers.
type QuestionCategory string

const (
	// QuestionAgeSex expects an age and a biological sex token.
	QuestionAgeSex QuestionCategory = "edad_sexo"
	// QuestionAncestry verifies that all four grandparents are Mexican.
	QuestionAncestry QuestionCategory = "nacionalidad"
	// QuestionDiagnosis asks about psychiatric diagnoses.
	QuestionDiagnosis QuestionCategory = "diagnostico_psiquiatrico"
	// QuestionMedication asks about current medication.
	QuestionMedication QuestionCategory = "medicamentos"
	// QuestionFamilyHistory asks about psychiatric diagnoses in the family.
	QuestionFamilyHistory QuestionCategory = "antecedentes_familiares"
	// QuestionCognitive asks about reading/writing/comprehension problems.
	QuestionCognitive QuestionCategory = "capacidades_cognitivas"
	// QuestionBioSamples asks whether the respondent can give biological samples.
	QuestionBioSamples QuestionCategory = "muestras_biologicas"
	// QuestionPsychosis asks about psychotic experiences; an affirmative
	// answer opens the follow-up sub-interview.
	QuestionPsychosis QuestionCategory = "experiencias_psicoticas"
	// QuestionSubstances asks about substance use.
	QuestionSubstances QuestionCategory = "consumo_sustancias"
	// QuestionFamilyParticipation asks whether a relative already participates.
	QuestionFamilyParticipation QuestionCategory = "participacion_familiar"
	// QuestionInfoSource asks how the respondent heard about the study.
	QuestionInfoSource QuestionCategory = "fuente_informacion"
)

// Question is one entry of the static screening question bank.
type Question struct {
	Number        int              `json:"number"`
	Prompt        string           `json:"prompt"`
	Category      QuestionCategory `json:"category"`
	OpensFollowUp bool             `json:"opens_follow_up,omitempty"`
}

// ValidationResult is the outcome of validating one free-text answer.
// Fields extracted from accepted answers are merged into the session's
// collected fields; Feedback is shown to the respondent either way.
type ValidationResult struct {
	Accepted         bool              `json:"accepted"`
	Fields           map[string]string `json:"fields,omitempty"`
	Feedback         string            `json:"feedback"`
	TriggersFollowUp bool              `json:"triggers_follow_up,omitempty"`
}

// FollowUpCategory identifies one of the two follow-up question lists.
type FollowUpCategory string

const (
	// FollowUpHallucinations is the perceptual-experience question list.
	FollowUpHallucinations FollowUpCategory = "alucinaciones"
	// FollowUpDelusions is the belief-experience question list.
	FollowUpDelusions FollowUpCategory = "delirios"
)

// FollowUpAnswer records one raw answer given during the follow-up
// sub-interview together with its per-answer score.
type FollowUpAnswer struct {
	ParticipantID string           `json:"participant_id"`
	Category      FollowUpCategory `json:"category"`
	Question      string           `json:"question"`
	Answer        string           `json:"answer"`
	Score         int              `json:"score"`
	AnsweredAt    time.Time        `json:"answered_at"`
}

// FollowUpScore aggregates the follow-up sub-interview. Each category is
// clamped to 3; Total is the sum of the two clamped values.
type FollowUpScore struct {
	Hallucinations int `json:"hallucinations"`
	Delusions      int `json:"delusions"`
	Total          int `json:"total"`
}

// EligibilityCategory is the final study classification of a respondent.
type EligibilityCategory string

const (
	// EligibilityProband is a symptomatic young participant.
	EligibilityProband EligibilityCategory = "probando"
	// EligibilityRelative is an adult relative of a participant.
	EligibilityRelative EligibilityCategory = "familiar"
	// EligibilityControl is a symptom-free young participant.
	EligibilityControl EligibilityCategory = "control"
	// EligibilityIneligible means no category criteria were met.
	EligibilityIneligible EligibilityCategory = "no_elegible"
)

// ClassificationResult is the immutable outcome of the eligibility decision
// procedure. Eligible is true iff Category != EligibilityIneligible.
type ClassificationResult struct {
	Category          EligibilityCategory `json:"category"`
	Eligible          bool                `json:"eligible"`
	SatisfiedCriteria []string            `json:"satisfied_criteria"`
	MissingCriteria   []string            `json:"missing_criteria"`
	Score             FollowUpScore       `json:"score"`
}

// Phase is the top-level stage of the interview state machine.
type Phase string

const (
	// PhaseInitial greets a brand-new respondent.
	PhaseInitial Phase = "initial"
	// PhaseRegistration collects name, age, sex, email and city.
	PhaseRegistration Phase = "registration"
	// PhaseScreening walks through the main question bank.
	PhaseScreening Phase = "screening"
	// PhaseFollowUpHallucinations runs the perceptual follow-up list.
	PhaseFollowUpHallucinations Phase = "followup_hallucinations"
	// PhaseFollowUpDelusions runs the belief follow-up list.
	PhaseFollowUpDelusions Phase = "followup_delusions"
	// PhaseSchedulingOffer awaits a yes/no to the appointment offer.
	PhaseSchedulingOffer Phase = "scheduling_offer"
	// PhaseTerminal ends the session; the session record is discarded.
	PhaseTerminal Phase = "terminal"
)

// Participant status values recorded in the participants table.
const (
	ParticipantStatusNew        = "nuevo"
	ParticipantStatusScreening  = "tamizaje_iniciado"
	ParticipantStatusEligible   = "elegible"
	ParticipantStatusIneligible = "no_elegible"
	ParticipantStatusScheduling = "agendamiento"
)

// Participant is the durable record created when registration completes.
type Participant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Age           int       `json:"age"`
	Sex           string    `json:"sex"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	City          string    `json:"city"`
	PreferredSite string    `json:"preferred_site,omitempty"`
	Status        string    `json:"status"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// ScreeningAnswer records one accepted answer to a main screening question.
type ScreeningAnswer struct {
	ParticipantID  string    `json:"participant_id"`
	QuestionNumber int       `json:"question_number"`
	QuestionText   string    `json:"question_text"`
	Answer         string    `json:"answer"`
	NeedsFollowUp  bool      `json:"needs_follow_up"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// Conversation records one inbound message and the reply sent for it.
type Conversation struct {
	ParticipantID string    `json:"participant_id,omitempty"`
	Phone         string    `json:"phone"`
	UserMessage   string    `json:"user_message"`
	BotReply      string    `json:"bot_reply"`
	Phase         Phase     `json:"phase"`
	Timestamp     time.Time `json:"timestamp"`
}

// Appointment status values.
const (
	AppointmentStatusScheduled = "agendada"
	AppointmentStatusConfirmed = "confirmada"
	AppointmentStatusCancelled = "cancelada"
)

// Appointment is a scheduled study visit for an eligible participant.
type Appointment struct {
	ID            int64     `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Time          string    `json:"time"` // HH:MM
	Site          string    `json:"site"`
	Status        string    `json:"status"`
	ReminderSent  bool      `json:"reminder_sent"`
	CreatedAt     time.Time `json:"created_at"`
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt is a delivery event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from a respondent.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Stats summarizes stored data for the status endpoint.
type Stats struct {
	TotalParticipants     int            `json:"total_participants"`
	ByClassification      map[string]int `json:"by_classification"`
	ByStatus              map[string]int `json:"by_status"`
	ScheduledAppointments int            `json:"scheduled_appointments"`
}

// Error variables shared across modules.
var (
	ErrEmptyRecipient    = errors.New("recipient cannot be empty")
	ErrEmptyBody         = errors.New("message body cannot be empty")
	ErrUnknownQuestion   = errors.New("unknown question number")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidAgeRange   = errors.New("age outside the allowed range")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrParticipantExists = errors.New("participant already registered")
)

// APIResponse is the standard JSON envelope for the status API.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
