// Package interview implements the conversation state machine that drives
// the screening interview. One Engine owns the in-memory session table and
// processes one inbound message at a time per respondent; the caller must
// guarantee at most one in-flight message per phone number.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epimex/screenbot/internal/models"
	"github.com/epimex/screenbot/internal/screening"
	"github.com/epimex/screenbot/internal/store"
)

// Generator produces LLM-phrased message variants. Every method is
// optional from the engine's point of view: failures and timeouts fall
// back to canned text and never block the interview.
type Generator interface {
	GenerateReply(ctx context.Context, contextHint, userMessage, kind string) (string, error)
	RephraseQuestion(ctx context.Context, original, hint string) (string, error)
	ClassificationMessage(ctx context.Context, c models.ClassificationResult, name string, age int) (string, error)
}

// generateTimeout bounds every Generator call. On expiry the engine
// proceeds with the original text.
const generateTimeout = 8 * time.Second

var (
	globalCommands = []string{"menu", "inicio", "hola", "ayuda", "info", "contacto"}

	startKeywords = []string{"2", "sí", "si", "participar", "iniciar", "empezar", "comenzar", "quiero"}

	affirmativeReplies = []string{"sí", "si", "yes", "claro", "por favor"}

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	agePattern = regexp.MustCompile(`\d+`)
)

// IntentDetector classifies a free-form message into a coarse intent
// label. It is only consulted in the initial phase, before any interview
// state exists; validators and the classifier never see it.
type IntentDetector interface {
	DetectIntent(ctx context.Context, message string) (string, error)
}

// Opts holds configuration options for the interview engine.
type Opts struct {
	Generator Generator
	Intents   IntentDetector
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithGenerator attaches an LLM text generator used to rephrase questions
// and personalize replies.
func WithGenerator(g Generator) Option {
	return func(o *Opts) { o.Generator = g }
}

// WithIntentDetector attaches an intent classifier used to route free-form
// first messages.
func WithIntentDetector(d IntentDetector) Option {
	return func(o *Opts) { o.Intents = d }
}

// Engine is the session state machine. It owns the session table; no
// other component mutates sessions. Messages for the same phone number
// must be handled serially (the dispatcher guarantees this); the mutex
// only guards the session table against concurrent handlers for
// different phones.
type Engine struct {
	store    store.Store
	gen      Generator
	intents  IntentDetector
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewEngine creates an interview engine backed by the given store.
func NewEngine(st store.Store, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewEngine invoked", "generator_set", cfg.Generator != nil, "intents_set", cfg.Intents != nil)
	return &Engine{
		store:    st,
		gen:      cfg.Generator,
		intents:  cfg.Intents,
		sessions: make(map[string]*Session),
	}
}

// SessionCount returns the number of live in-memory sessions.
func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) session(phone string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[phone]
	if !ok {
		sess = newSession(phone)
		e.sessions[phone] = sess
		slog.Info("Engine created session", "phone", phone)
	}
	return sess
}

func (e *Engine) dropSession(phone string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, phone)
}

// HandleMessage processes one inbound message and returns the reply to
// send. It never returns an error: validation rejections re-prompt,
// degraded collaborators fall back, and a panic in handler logic ends the
// session with an apology instead of crashing the process.
func (e *Engine) HandleMessage(ctx context.Context, phone, text string) (reply string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	sess := e.session(phone)
	sess.LastActivity = time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine recovered from panic", "phone", phone, "phase", sess.Phase, "panic", r)
			e.dropSession(phone)
			reply = apologyReply
		}
	}()

	if cmd, ok := e.interceptGlobalCommand(ctx, sess, text); ok {
		e.recordConversation(sess, text, cmd)
		return cmd
	}

	switch sess.Phase {
	case models.PhaseInitial:
		reply = e.handleInitial(ctx, sess, text)
	case models.PhaseRegistration:
		reply = e.handleRegistration(ctx, sess, text)
	case models.PhaseScreening:
		reply = e.handleScreening(ctx, sess, text)
	case models.PhaseFollowUpHallucinations, models.PhaseFollowUpDelusions:
		reply = e.handleFollowUp(ctx, sess, text)
	case models.PhaseSchedulingOffer:
		reply = e.handleSchedulingOffer(ctx, sess, text)
	default:
		reply = e.generate(ctx, "Usuario general consultando sobre EPIMex", text, "general", mainMenu(sess.Draft.Name))
	}

	e.recordConversation(sess, text, reply)

	if sess.Phase == models.PhaseTerminal {
		e.dropSession(phone)
		slog.Info("Engine ended session", "phone", phone)
	}
	return reply
}

// interceptGlobalCommand handles menu/help/contact keywords before phase
// dispatch. It never mutates the phase; in-progress interview state is
// preserved.
func (e *Engine) interceptGlobalCommand(ctx context.Context, sess *Session, text string) (string, bool) {
	if sess.Phase == models.PhaseTerminal {
		return "", false
	}
	lowered := strings.ToLower(text)
	matched := ""
	for _, cmd := range globalCommands {
		if strings.Contains(lowered, cmd) {
			matched = cmd
			break
		}
	}
	if matched == "" {
		return "", false
	}
	slog.Debug("Engine intercepted global command", "phone", sess.Phone, "command", matched)

	// A greeting or menu request in the initial phase already shows the
	// menu, so the phase handler should not repeat it.
	if sess.Phase == models.PhaseInitial {
		sess.Greeted = true
	}

	switch matched {
	case "contacto":
		return contactInfo, true
	case "hola":
		hint := "Saludo inicial"
		if sess.Draft.Name != "" {
			hint = "Participante conocido: " + sess.Draft.Name
		}
		return e.generate(ctx, hint, text, "general", mainMenu(sess.Draft.Name)), true
	default:
		return mainMenu(sess.Draft.Name), true
	}
}

func (e *Engine) handleInitial(ctx context.Context, sess *Session, text string) string {
	if !sess.Greeted {
		sess.Greeted = true
		greeting := e.generate(ctx, "Usuario nuevo interesado en EPIMex", text, "general", "")
		if greeting == "" {
			return welcomeMenu
		}
		return greeting + "\n\n" + welcomeMenu
	}

	if containsAnyKeyword(text, startKeywords) {
		sess.Phase = models.PhaseRegistration
		sess.RegistrationStep = 0
		slog.Info("Engine started registration", "phone", sess.Phone)
		return askName
	}

	// No start keyword matched; let the intent classifier take a second
	// look at free-form phrasings.
	switch e.detectIntent(ctx, text) {
	case "participar":
		sess.Phase = models.PhaseRegistration
		sess.RegistrationStep = 0
		slog.Info("Engine started registration via intent", "phone", sess.Phone)
		return askName
	case "dudas":
		return contactInfo
	}

	return e.generate(ctx, "Usuario general consultando sobre EPIMex", text, "general", mainMenu(""))
}

// detectIntent consults the optional intent classifier with a bounded
// timeout. Any failure reads as no intent.
func (e *Engine) detectIntent(ctx context.Context, text string) string {
	if e.intents == nil {
		return ""
	}
	dctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	intent, err := e.intents.DetectIntent(dctx, text)
	if err != nil {
		slog.Warn("Engine intent detection failed", "error", err)
		return ""
	}
	return intent
}

func (e *Engine) handleRegistration(ctx context.Context, sess *Session, text string) string {
	switch sess.RegistrationStep {
	case 0: // name
		sess.Draft.Name = text
		sess.RegistrationStep++
		return askAge
	case 1: // age
		age, err := strconv.Atoi(agePattern.FindString(text))
		if err != nil || age < screening.MinAge || age > screening.MaxAge {
			return askAgeAgain
		}
		sess.Draft.Age = age
		sess.RegistrationStep++
		return askSex
	case 2: // sex
		sess.Draft.Sex = text
		sess.RegistrationStep++
		return askEmail
	case 3: // email
		if !emailPattern.MatchString(text) {
			return askEmailAgain
		}
		sess.Draft.Email = text
		sess.RegistrationStep++
		return askCity
	default: // city
		sess.Draft.City = text
		return e.completeRegistration(ctx, sess)
	}
}

// completeRegistration persists the respondent record and opens the main
// screening interview. A storage failure does not abort the interview;
// the session keeps a locally generated ID and the reply carries a
// data-loss notice.
func (e *Engine) completeRegistration(ctx context.Context, sess *Session) string {
	sess.Draft.Phone = sess.Phone
	sess.Draft.Status = models.ParticipantStatusNew

	id, err := e.store.CreateParticipant(sess.Draft)
	if err == models.ErrParticipantExists {
		if existing, lookupErr := e.store.GetParticipantByPhone(sess.Phone); lookupErr == nil && existing != nil {
			id = existing.ID
			err = nil
		}
	}
	if err != nil {
		slog.Error("Engine failed to persist participant", "error", err, "phone", sess.Phone)
		sess.StorageDegraded = true
		id = uuid.NewString()
	}
	sess.ParticipantID = id

	if err := e.store.UpdateParticipantStatus(id, models.ParticipantStatusScreening); err != nil {
		slog.Error("Engine failed to update participant status", "error", err, "participantID", id)
		sess.StorageDegraded = true
	}

	sess.Phase = models.PhaseScreening
	sess.CurrentQuestion = 1
	slog.Info("Engine started screening", "phone", sess.Phone, "participantID", id)

	q, _ := screening.GetQuestion(1)
	prompt := e.rephrase(ctx, q.Prompt, fmt.Sprintf("Participante de %d años", sess.Draft.Age))
	intro := e.generate(ctx,
		fmt.Sprintf("Participante %s va a iniciar tamizaje", sess.Draft.Name),
		"Iniciar tamizaje", "tamizaje", screeningIntro)

	reply := fmt.Sprintf("%s\n\n*Pregunta 1 de %d:*\n%s", intro, screening.QuestionCount(), prompt)
	return e.withStorageNotice(sess, reply)
}

func (e *Engine) handleScreening(ctx context.Context, sess *Session, text string) string {
	q, ok := screening.GetQuestion(sess.CurrentQuestion)
	if !ok {
		return e.classifySession(ctx, sess)
	}

	result, err := screening.Validate(sess.CurrentQuestion, text)
	if err != nil {
		slog.Error("Engine validation dispatch failed", "error", err, "question", sess.CurrentQuestion)
		return e.classifySession(ctx, sess)
	}

	if !result.Accepted {
		// Rejected answers re-prompt the same question; nothing advances
		// and no fields are merged.
		clarification := e.generate(ctx,
			fmt.Sprintf("Pregunta %d: %s", sess.CurrentQuestion, q.Prompt),
			text, "tamizaje", "")
		if clarification == "" {
			return result.Feedback
		}
		return clarification + "\n\n" + result.Feedback
	}

	for k, v := range result.Fields {
		sess.Fields[k] = v
	}
	if err := e.store.SaveScreeningAnswer(models.ScreeningAnswer{
		ParticipantID:  sess.ParticipantID,
		QuestionNumber: sess.CurrentQuestion,
		QuestionText:   q.Prompt,
		Answer:         text,
		NeedsFollowUp:  result.TriggersFollowUp,
	}); err != nil {
		slog.Error("Engine failed to persist screening answer", "error", err, "participantID", sess.ParticipantID, "question", sess.CurrentQuestion)
		sess.StorageDegraded = true
	}

	if q.OpensFollowUp && result.TriggersFollowUp {
		sess.PendingFollowUp = true
	}

	sess.CurrentQuestion++
	next, ok := screening.GetQuestion(sess.CurrentQuestion)
	if !ok {
		return e.completeScreening(ctx, sess)
	}

	prompt := e.rephrase(ctx, next.Prompt, fmt.Sprintf("Participante en pregunta %d", sess.CurrentQuestion))
	reply := fmt.Sprintf("%s\n\n*Pregunta %d de %d:*\n%s", result.Feedback, sess.CurrentQuestion, screening.QuestionCount(), prompt)
	return e.withStorageNotice(sess, reply)
}

func (e *Engine) completeScreening(ctx context.Context, sess *Session) string {
	if !sess.PendingFollowUp {
		return e.classifySession(ctx, sess)
	}

	sess.Phase = models.PhaseFollowUpHallucinations
	sess.FollowUpCategory = models.FollowUpHallucinations
	sess.FollowUpIndex = 0
	slog.Info("Engine opened follow-up sub-interview", "phone", sess.Phone)

	intro := e.generate(ctx, "Transición a evaluación detallada de experiencias",
		"Iniciar seguimiento psicosis", "psicosis_seguimiento", followUpIntro)
	questions := screening.FollowUpQuestions(models.FollowUpHallucinations)
	return e.withStorageNotice(sess, intro+"\n\n"+questions[0])
}

// handleFollowUp records and scores one follow-up answer. Follow-up
// answers are never rejected; any text is accepted and scored.
func (e *Engine) handleFollowUp(ctx context.Context, sess *Session, text string) string {
	questions := screening.FollowUpQuestions(sess.FollowUpCategory)
	current := questions[sess.FollowUpIndex]

	answer := models.FollowUpAnswer{
		ParticipantID: sess.ParticipantID,
		Category:      sess.FollowUpCategory,
		Question:      current,
		Answer:        text,
		Score:         screening.ScoreAnswer(sess.FollowUpCategory, text),
	}
	sess.FollowUpAnswers = append(sess.FollowUpAnswers, answer)
	if err := e.store.SaveFollowUpAnswer(answer); err != nil {
		slog.Error("Engine failed to persist follow-up answer", "error", err, "participantID", sess.ParticipantID)
		sess.StorageDegraded = true
	}

	sess.FollowUpIndex++
	if sess.FollowUpIndex < len(questions) {
		ack := e.generate(ctx, fmt.Sprintf("Evaluación de %s", sess.FollowUpCategory), text, "psicosis_seguimiento", followUpAck)
		return e.withStorageNotice(sess, ack+"\n\n"+questions[sess.FollowUpIndex])
	}

	if sess.FollowUpCategory == models.FollowUpHallucinations {
		sess.Phase = models.PhaseFollowUpDelusions
		sess.FollowUpCategory = models.FollowUpDelusions
		sess.FollowUpIndex = 0
		transition := e.generate(ctx, "Transición de alucinaciones a delirios", "Continuar evaluación", "psicosis_seguimiento", followUpTransition)
		next := screening.FollowUpQuestions(models.FollowUpDelusions)
		return e.withStorageNotice(sess, transition+"\n\n"+next[0])
	}

	return e.classifySession(ctx, sess)
}

// classifySession is the synthetic classified state: it computes and
// persists the eligibility result, then moves to the scheduling offer or
// ends the session.
func (e *Engine) classifySession(ctx context.Context, sess *Session) string {
	score := screening.ScoreFollowUp(sess.FollowUpAnswers)
	result := screening.Classify(sess.Fields, score)

	if err := e.store.SaveClassification(sess.ParticipantID, result); err != nil {
		slog.Error("Engine failed to persist classification", "error", err, "participantID", sess.ParticipantID)
		sess.StorageDegraded = true
	}
	status := models.ParticipantStatusIneligible
	if result.Eligible {
		status = models.ParticipantStatusEligible
	}
	if err := e.store.UpdateParticipantStatus(sess.ParticipantID, status); err != nil {
		slog.Error("Engine failed to update participant status", "error", err, "participantID", sess.ParticipantID)
		sess.StorageDegraded = true
	}

	msg := e.classificationMessage(ctx, result, sess)
	if result.Eligible {
		sess.Phase = models.PhaseSchedulingOffer
		return e.withStorageNotice(sess, msg+"\n\n"+schedulingOfferPrompt)
	}
	sess.Phase = models.PhaseTerminal
	return e.withStorageNotice(sess, msg+"\n\n"+ineligibleClosing)
}

func (e *Engine) handleSchedulingOffer(ctx context.Context, sess *Session, text string) string {
	sess.Phase = models.PhaseTerminal
	if containsAnyKeyword(text, affirmativeReplies) {
		if err := e.store.UpdateParticipantStatus(sess.ParticipantID, models.ParticipantStatusScheduling); err != nil {
			slog.Error("Engine failed to update participant status", "error", err, "participantID", sess.ParticipantID)
			sess.StorageDegraded = true
		}
		slog.Info("Engine scheduling accepted", "phone", sess.Phone, "participantID", sess.ParticipantID)
		return e.withStorageNotice(sess, schedulingAccepted)
	}
	return schedulingDeclined
}

// generate calls the generator with a bounded timeout and falls back to
// the given canned text.
func (e *Engine) generate(ctx context.Context, contextHint, userMessage, kind, fallback string) string {
	if e.gen == nil {
		return fallback
	}
	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	out, err := e.gen.GenerateReply(gctx, contextHint, userMessage, kind)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			slog.Warn("Engine reply generation degraded", "error", err, "kind", kind)
		}
		return fallback
	}
	return out
}

// rephrase asks the generator for a friendlier phrasing of a question,
// falling back to the original text on any failure or timeout.
func (e *Engine) rephrase(ctx context.Context, original, hint string) string {
	if e.gen == nil {
		return original
	}
	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	out, err := e.gen.RephraseQuestion(gctx, original, hint)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			slog.Warn("Engine question rephrasing degraded", "error", err)
		}
		return original
	}
	return out
}

func (e *Engine) classificationMessage(ctx context.Context, result models.ClassificationResult, sess *Session) string {
	fallback := ineligibleFallback(sess.Draft.Name)
	if result.Eligible {
		fallback = eligibleFallback(sess.Draft.Name)
	}
	if e.gen == nil {
		return fallback
	}
	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	out, err := e.gen.ClassificationMessage(gctx, result, sess.Draft.Name, sess.Draft.Age)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			slog.Warn("Engine classification message degraded", "error", err)
		}
		return fallback
	}
	return out
}

// withStorageNotice appends the data-loss notice once after a persistence
// failure, then clears the flag so the notice is not repeated.
func (e *Engine) withStorageNotice(sess *Session, reply string) string {
	if !sess.StorageDegraded {
		return reply
	}
	sess.StorageDegraded = false
	return reply + "\n\n" + storageWarning
}

func (e *Engine) recordConversation(sess *Session, userMessage, botReply string) {
	if err := e.store.SaveConversation(models.Conversation{
		ParticipantID: sess.ParticipantID,
		Phone:         sess.Phone,
		UserMessage:   userMessage,
		BotReply:      botReply,
		Phase:         sess.Phase,
	}); err != nil {
		slog.Error("Engine failed to persist conversation", "error", err, "phone", sess.Phone)
	}
}

func containsAnyKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}
