// Package genai wraps the OpenAI API for the conversational surface of the
// screening bot: empathetic reply variants, question rephrasing,
// classification result messages and reminder texts. Every operation
// degrades to a canned fallback when the API fails; callers never depend
// on the API being reachable.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/epimex/screenbot/internal/models"
)

// Reply kinds select the tone instructions appended to the system persona.
const (
	KindGeneral        = "general"
	KindScreening      = "tamizaje"
	KindFollowUp       = "psicosis_seguimiento"
	KindClassification = "clasificacion"
	KindScheduling     = "agendamiento"
)

// systemPersona is the study assistant persona sent with every request.
const systemPersona = `Eres un asistente especializado en el estudio de investigación EPIMex (Arquitectura genética de la psicosis de inicio temprano en mexicanos).

CARACTERÍSTICAS DE TU PERSONALIDAD:
- Empático y comprensivo
- Profesional pero cálido
- Claro y directo
- Respetuoso de la confidencialidad
- Sensible a temas de salud mental

INFORMACIÓN DEL ESTUDIO:
EPIMex busca entender las causas genéticas, neuropsicológicas y socioemocionales de la psicosis de inicio temprano en población mexicana. Se analizan factores biológicos, psicológicos y sociales mediante entrevistas clínicas, pruebas cognitivas y recolección de muestras biológicas.

SEDES:
- Benito Juárez: Grupo Médico Carracci, Carracci 107, Col. Extremadura Insurgentes
- Tlalpan: Hospital Psiquiátrico Infantil Dr. Juan N. Navarro, Av. San Fernando 86

CONTACTOS:
- Email: EPIMex@gmc.org.mx
- WhatsApp Benito Juárez: 55 3206 7976
- WhatsApp Tlalpan: 55 7871 0328
- Web: www.epimex.net

INSTRUCCIONES IMPORTANTES:
1. Mantén las respuestas concisas pero completas (máximo 200 palabras)
2. Usa un tono empático especialmente cuando se hablen de síntomas o experiencias difíciles
3. Siempre mantén la información científica precisa
4. Adapta el lenguaje a la edad del participante
5. Si no tienes información específica, deriva al equipo especializado
6. Nunca diagnostiques ni des consejos médicos
7. Respeta la confidencialidad en todo momento`

var kindInstructions = map[string]string{
	KindScreening: `ESTÁS EN PROCESO DE TAMIZAJE:
- Haz la pregunta de manera empática y clara
- Si la respuesta no es clara, pide clarificación amablemente
- Agradece la honestidad del participante`,
	KindFollowUp: `ESTÁS EVALUANDO EXPERIENCIAS SENSIBLES:
- Usa un tono muy empático y sin juicio
- Normaliza las experiencias ("muchas personas han tenido...")
- Agradece la confianza al compartir
- No uses términos médicos complejos`,
	KindClassification: `ESTÁS COMUNICANDO RESULTADOS:
- Sé positivo y alentador
- Explica los próximos pasos claramente
- Mantén expectativas realistas`,
	KindScheduling: `ESTÁS AYUDANDO CON AGENDAMIENTO:
- Sé eficiente pero amable
- Confirma información importante
- Explica el proceso claramente`,
}

// fallbackReplies are used when the API is unreachable.
var fallbackReplies = map[string]string{
	KindGeneral:        "Gracias por tu mensaje. Nuestro equipo está disponible para ayudarte con cualquier pregunta sobre EPIMex.",
	KindScreening:      "Entiendo tu respuesta. Continuemos con el siguiente paso del proceso.",
	KindFollowUp:       "Agradezco que compartas esta información conmigo. Es importante para el estudio.",
	KindClassification: "Hemos registrado tu información. Te contactaremos pronto con los siguientes pasos.",
	KindScheduling:     "Perfecto, procederemos con el agendamiento de tu cita.",
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a GenAI client. The API key must be provided via
// WithAPIKey; the model defaults to GPT-4o.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI client API key not set")
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4o
	}
	slog.Debug("NewClient created GenAI client", "model", cfg.Model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, maxTokens int64, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateReply produces an empathetic reply for the given conversation
// context. On API failure it returns the canned fallback for the kind and
// a nil error, so callers can use the result directly.
func (c *Client) GenerateReply(ctx context.Context, contextHint, userMessage, kind string) (string, error) {
	prompt := systemPersona
	if extra, ok := kindInstructions[kind]; ok {
		prompt += "\n\n" + extra
	}

	out, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt),
		openai.UserMessage(fmt.Sprintf("Contexto: %s\n\nMensaje del usuario: %s", contextHint, userMessage)),
	}, 300, 0.7)
	if err != nil {
		slog.Warn("GenAI GenerateReply degraded to fallback", "error", err, "kind", kind)
		fallback, ok := fallbackReplies[kind]
		if !ok {
			fallback = fallbackReplies[KindGeneral]
		}
		return fallback, nil
	}
	slog.Debug("GenAI GenerateReply succeeded", "kind", kind)
	return out, nil
}

// RephraseQuestion asks for a friendlier phrasing of a screening question.
// Any failure returns the original question unchanged.
func (c *Client) RephraseQuestion(ctx context.Context, original, hint string) (string, error) {
	prompt := fmt.Sprintf(`Reformula esta pregunta de tamizaje para que sea más natural y empática, considerando el contexto del participante:

Pregunta original: "%s"
Contexto del participante: %s

Instrucciones:
- Mantén el contenido científico exacto
- Hazla más conversacional y menos formal
- Máximo 100 palabras`, original, hint)

	out, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, 150, 0.8)
	if err != nil {
		slog.Warn("GenAI RephraseQuestion degraded to original", "error", err)
		return original, nil
	}
	return out, nil
}

// ClassificationMessage generates the message that communicates the
// screening outcome. On failure it returns a fixed template keyed on
// eligibility.
func (c *Client) ClassificationMessage(ctx context.Context, result models.ClassificationResult, name string, age int) (string, error) {
	eligible := "No"
	if result.Eligible {
		eligible = "Sí"
	}
	prompt := fmt.Sprintf(`Genera un mensaje empático y profesional para comunicar el resultado del tamizaje:

Clasificación: %s
Elegible: %s
Criterios cumplidos: %s
Criterios faltantes: %s

Participante: %s, %d años

Instrucciones:
- Si es elegible: Sé positivo y explica próximos pasos
- Si no es elegible: Sé empático y agradece la participación
- Máximo 150 palabras
- No uses términos técnicos como "probando", "control", etc.
- Enfócate en la contribución al estudio`,
		result.Category, eligible,
		strings.Join(result.SatisfiedCriteria, ", "),
		strings.Join(result.MissingCriteria, ", "),
		name, age)

	out, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, 200, 0.7)
	if err != nil {
		slog.Warn("GenAI ClassificationMessage degraded to template", "error", err, "eligible", result.Eligible)
		return classificationFallback(result.Eligible, name), nil
	}
	return out, nil
}

func classificationFallback(eligible bool, name string) string {
	if eligible {
		return fmt.Sprintf("¡Gracias %s! Has completado el tamizaje inicial para EPIMex. Tu información será revisada por nuestro equipo y te contactaremos pronto para coordinar los siguientes pasos. ¡Agradecemos mucho tu interés en contribuir a esta importante investigación!", name)
	}
	return fmt.Sprintf("Gracias %s por tu tiempo e interés en EPIMex. Aunque en este momento no cumples todos los criterios para participar, valoramos mucho tu disposición a contribuir a la investigación en salud mental. Si tienes preguntas, no dudes en contactarnos.", name)
}

// ReminderMessage generates a reminder text of the given type.
// appointmentInfo may be empty for participation follow-ups.
func (c *Client) ReminderMessage(ctx context.Context, kind, name, appointmentInfo string) (string, error) {
	prompt := fmt.Sprintf(`Genera un recordatorio %s para EPIMex:

Participante: %s`, kind, name)
	if appointmentInfo != "" {
		prompt += "\n" + appointmentInfo
	}
	prompt += `

Instrucciones:
- Tono amigable y profesional
- Incluye emojis apropiados
- Máximo 100 palabras`

	out, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, 150, 0.8)
	if err != nil {
		slog.Warn("GenAI ReminderMessage degraded to template", "error", err, "kind", kind)
		return reminderFallback(kind, name), nil
	}
	return out, nil
}

func reminderFallback(kind, name string) string {
	switch kind {
	case "cita":
		return fmt.Sprintf("¡Hola %s! 👋 Te recordamos tu cita para EPIMex. ¡Te esperamos!", name)
	case "seguimiento":
		return fmt.Sprintf("Hola %s, ¿sigues interesado/a en participar en EPIMex? Estamos aquí para ayudarte.", name)
	default:
		return fmt.Sprintf("¡Hola %s! ¿Te gustaría conocer más sobre EPIMex? Podemos resolver tus dudas.", name)
	}
}

// Known intents returned by DetectIntent.
const (
	IntentGreeting     = "saludo"
	IntentInformation  = "informacion"
	IntentParticipate  = "participar"
	IntentQuestions    = "dudas"
	IntentConfirmation = "confirmacion"
	IntentCancellation = "cancelacion"
	IntentResults      = "resultados"
	IntentOther        = "otro"
)

// intentKeywords backs the keyword fallback when the API is unavailable.
var intentKeywords = map[string][]string{
	IntentGreeting:     {"hola", "buenos días", "buenas tardes", "buenas noches"},
	IntentParticipate:  {"participar", "inscribir", "agendar", "quiero entrar"},
	IntentInformation:  {"información", "informacion", "estudio", "qué es", "que es"},
	IntentConfirmation: {"sí", "si", "confirmo", "claro"},
	IntentCancellation: {"cancelar", "ya no", "no quiero"},
	IntentResults:      {"resultado", "resultados"},
}

// DetectIntent classifies a free-text message into one of the known
// intents, falling back to keyword matching when the API fails.
func (c *Client) DetectIntent(ctx context.Context, message string) (string, error) {
	prompt := fmt.Sprintf(`Analiza este mensaje y determina la intención del usuario en el contexto del estudio EPIMex:

Mensaje: "%s"

Posibles intenciones: saludo, informacion, participar, dudas, confirmacion, cancelacion, resultados, otro.

Responde solo con la intención detectada.`, message)

	out, err := c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}, 20, 0.3)
	if err != nil {
		slog.Warn("GenAI DetectIntent degraded to keywords", "error", err)
		return detectIntentKeywords(message), nil
	}
	return strings.ToLower(out), nil
}

func detectIntentKeywords(message string) string {
	lowered := strings.ToLower(message)
	for _, intent := range []string{IntentCancellation, IntentParticipate, IntentResults, IntentInformation, IntentGreeting, IntentConfirmation} {
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(lowered, kw) {
				return intent
			}
		}
	}
	return IntentOther
}
