// Package screening implements the EPIMex screening core: the static
// question bank, the answer validators, the psychosis follow-up scoring,
// and the eligibility classifier.
//
// Everything in this package is pure: validators and the classifier depend
// only on their inputs, never on external state.
package screening

import "github.com/epimex/screenbot/internal/models"

// questionBank is the fixed, ordered main interview script. Question
// numbers are contiguous starting at 1.
var questionBank = []models.Question{
	{
		Number:   1,
		Prompt:   "¿Cuál es tu edad y sexo biológico asignado al nacer?",
		Category: models.QuestionAgeSex,
	},
	{
		Number:   2,
		Prompt:   "¿Cuál es la nacionalidad de tus padres, abuelos y tuya?",
		Category: models.QuestionAncestry,
	},
	{
		Number:   3,
		Prompt:   "¿Te han dado algún diagnóstico psiquiátrico? Si la respuesta es 'sí', indicar cuál es el diagnóstico",
		Category: models.QuestionDiagnosis,
	},
	{
		Number:   4,
		Prompt:   "¿Tomas algún medicamento? Si la respuesta es 'sí', indicar los medicamentos y para qué los recetaron, por favor",
		Category: models.QuestionMedication,
	},
	{
		Number:   5,
		Prompt:   "¿En tu familia hay algún diagnóstico psiquiátrico? Si la respuesta es 'sí' indicar cuál o cuáles son los diagnósticos y qué familiares lo tienen",
		Category: models.QuestionFamilyHistory,
	},
	{
		Number:   6,
		Prompt:   "¿Tienes algún problema para leer, escribir, comunicarte o comprender?",
		Category: models.QuestionCognitive,
	},
	{
		Number:   7,
		Prompt:   "¿Eres capaz de proporcionar muestras biológicas (sangre, saliva y epitelio bucal)?",
		Category: models.QuestionBioSamples,
	},
	{
		Number:        8,
		Prompt:        "Tú o alguien en tu familia ha presentado alguna de las siguientes experiencias: ¿Ver sombras, espíritus, escuchar voces, sentir que los persiguen/observan, percibir olores que nadie más percibe, ideas extrañas, comportamientos raros o alguna otra?",
		Category:      models.QuestionPsychosis,
		OpensFollowUp: true,
	},
	{
		Number:   9,
		Prompt:   "¿Has consumido alguna droga? Si la respuesta es positiva por favor indicar cuál o cuáles han sido, desde cuándo, dosis y con qué frecuencia",
		Category: models.QuestionSubstances,
	},
	{
		Number:   10,
		Prompt:   "¿Algún familiar tuyo ha participado en este estudio?",
		Category: models.QuestionFamilyParticipation,
	},
	{
		Number:   11,
		Prompt:   "¿Cómo te enteraste de esta investigación?",
		Category: models.QuestionInfoSource,
	},
}

// hallucinationQuestions is the perceptual follow-up list, asked first.
var hallucinationQuestions = []string{
	"¿Alguna vez has oído voces estando solo? ¿Qué oíste?",
	"¿Alguna vez has oído a alguien llamarte por tu nombre cuando no había nadie cerca?",
	"¿Alguna vez has oído música que otras personas no podían oír?",
	"¿Alguna vez has visto cosas que no existían?",
	"¿Qué hay de sombras u otros objetos en movimiento?",
	"¿Viste fantasmas?",
	"¿Cuándo ocurrió? ¿Solo de noche mientras intentabas dormir o también durante el día?",
	"¿Qué creyó que era?",
	"¿Pensó que era su imaginación o real?",
	"¿Pensó que era real cuando lo oyó/vio?",
	"¿Qué hizo cuando lo oyó/vio?",
	"¿Ocurrieron cuando estaba despierto o dormido? ¿Pudo haber sido un sueño?",
	"¿Tenía fiebre cuando ocurrieron?",
	"¿Había estado bebiendo o tomando drogas cuando ocurrió?",
	"¿Fue como un pensamiento o más bien como una voz/ruido/visión real?",
}

// delusionQuestions is the belief follow-up list, asked second.
var delusionQuestions = []string{
	"¿Sabes qué es la imaginación? Cuéntame.",
	"¿Alguna vez tu imaginación te ha jugado una mala pasada?",
	"¿Tuviste ideas sobre cosas que no le dijiste a nadie por miedo a que no las entendieran?",
	"¿Creías en cosas en las que otras personas no creían?",
	"¿Alguna vez sentiste que alguien quería hacerte daño?",
	"¿Alguna vez pensaste que eras una persona importante o grandiosa?",
	"Cuando estabas con desconocidos, ¿pensabas que estaban hablando de ti?",
	"¿Hubo alguna vez en que sentiste que algo le estaba pasando a tu cuerpo?",
	"¿Creías que se estaba pudriendo por dentro o que algo andaba muy mal?",
	"¿Alguna vez sentiste que el mundo se estaba acabando?",
	"¿Con qué frecuencia pensaste en estas experiencias?",
}

// QuestionCount returns the number of main screening questions.
func QuestionCount() int {
	return len(questionBank)
}

// GetQuestion returns the question with the given number (1-based), or
// false if the number is outside the bank.
func GetQuestion(number int) (models.Question, bool) {
	if number < 1 || number > len(questionBank) {
		return models.Question{}, false
	}
	return questionBank[number-1], true
}

// NextQuestion returns the question following the given number, or false
// when the given question is the last one.
func NextQuestion(current int) (models.Question, bool) {
	return GetQuestion(current + 1)
}

// FollowUpQuestions returns the fixed question list for a follow-up
// category. Unknown categories yield an empty list.
func FollowUpQuestions(category models.FollowUpCategory) []string {
	switch category {
	case models.FollowUpHallucinations:
		return hallucinationQuestions
	case models.FollowUpDelusions:
		return delusionQuestions
	default:
		return nil
	}
}
