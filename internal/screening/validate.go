// This file implements the per-category answer validators.
//
// Matching policy: keyword sets are matched case-insensitively as
// substrings; the negative set is checked before the affirmative set. Only
// the age/sex question, the ancestry question and the psychosis trigger
// question can hard-reject an answer — every other category accepts by
// default so an unclear answer never stalls the interview.
package screening

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/epimex/screenbot/internal/models"
)

// Field keys for values extracted from accepted answers.
const (
	FieldAge                = "edad"
	FieldSex                = "sexo"
	FieldAncestryValid      = "nacionalidad_valida"
	FieldHasDiagnosis       = "tiene_diagnostico"
	FieldDiagnosisDetail    = "diagnostico"
	FieldPsychoticDiagnosis = "diagnostico_psicotico"
	FieldTakesMedication    = "toma_medicamentos"
	FieldMedicationDetail   = "medicamentos"
	FieldAntipsychotics     = "toma_antipsicoticos"
	FieldFamilyHistory      = "antecedentes_familiares"
	FieldFamilyHistoryInfo  = "antecedentes_detalles"
	FieldFirstDegree        = "familiar_primer_grado"
	FieldCognitiveIssues    = "problemas_capacidades"
	FieldCognitiveDetail    = "capacidades_detalles"
	FieldCanGiveSamples     = "puede_muestras"
	FieldPsychosisReported  = "experiencias_psicoticas"
	FieldPsychosisDetail    = "experiencias_detalles"
	FieldUsesSubstances     = "consume_sustancias"
	FieldSubstanceDetail    = "sustancias_detalles"
	FieldKnownSubstance     = "sustancia_detectada"
	FieldRelativeEnrolled   = "familiar_participa"
	FieldRelativeDetail     = "familiar_detalles"
	FieldInfoSource         = "fuente_informacion"
)

// Age bounds for study participation.
const (
	MinAge = 10
	MaxAge = 75
)

// ageSexPattern extracts a number followed by a sex token.
var ageSexPattern = regexp.MustCompile(`(?i)(\d+).*?(masculino|femenino|hombre|mujer|otro)`)

// Keyword vocabularies. All matching is done on lowercased text.
var (
	negativeKeywords    = []string{"no", "ninguno", "nunca", "nadie", "jamás"}
	affirmativeKeywords = []string{"sí", "si", "tengo", "me diagnosticaron", "claro"}

	ancestryKeywords       = []string{"mexicano", "mexicana", "méxico", "mexico"}
	psychosisYesKeywords   = []string{"sí", "si", "he visto", "he oído", "he sentido", "mi familia"}
	samplesYesKeywords     = []string{"sí", "si", "puedo", "capaz"}
	samplesNoKeywords      = []string{"no", "no puedo", "incapaz"}

	psychoticDiagnoses = []string{
		"esquizofrenia", "esquizofreniforme", "esquizoafectivo",
		"delirante", "psicótico", "psicotico", "bipolar", "depresión mayor",
	}
	antipsychoticMeds = []string{
		"risperidona", "olanzapina", "quetiapina", "aripiprazol",
		"haloperidol", "clozapina", "paliperidona",
	}
	firstDegreeRelatives = []string{"padre", "madre", "hermano", "hermana", "hijo", "hija"}
	familyDiagnoses      = []string{"esquizofrenia", "bipolar", "depresión", "ansiedad", "psicosis"}
	knownSubstances      = []string{
		"marihuana", "cocaína", "alcohol", "anfetaminas",
		"heroína", "lsd", "éxtasis", "crack",
	}
)

// containsAny reports whether lowered contains any of the keywords.
func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func boolField(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// Validate validates the raw answer to the given main screening question.
// It is a pure function of the question's category and the text.
func Validate(questionNumber int, rawText string) (models.ValidationResult, error) {
	q, ok := GetQuestion(questionNumber)
	if !ok {
		slog.Error("screening.Validate unknown question", "number", questionNumber)
		return models.ValidationResult{}, models.ErrUnknownQuestion
	}

	text := strings.TrimSpace(rawText)
	lowered := strings.ToLower(text)

	var result models.ValidationResult
	switch q.Category {
	case models.QuestionAgeSex:
		result = validateAgeSex(text)
	case models.QuestionAncestry:
		result = validateAncestry(lowered)
	case models.QuestionDiagnosis:
		result = validateDiagnosis(text, lowered)
	case models.QuestionMedication:
		result = validateMedication(text, lowered)
	case models.QuestionFamilyHistory:
		result = validateFamilyHistory(text, lowered)
	case models.QuestionCognitive:
		result = validateCognitive(text, lowered)
	case models.QuestionBioSamples:
		result = validateBioSamples(lowered)
	case models.QuestionPsychosis:
		result = validatePsychosis(text, lowered)
	case models.QuestionSubstances:
		result = validateSubstances(text, lowered)
	case models.QuestionFamilyParticipation:
		result = validateFamilyParticipation(text, lowered)
	case models.QuestionInfoSource:
		result = validateInfoSource(text)
	default:
		slog.Error("screening.Validate unhandled category", "category", q.Category)
		return models.ValidationResult{}, fmt.Errorf("no validator for category %s", q.Category)
	}

	slog.Debug("screening.Validate", "question", questionNumber, "category", q.Category,
		"accepted", result.Accepted, "triggers_follow_up", result.TriggersFollowUp)
	return result, nil
}

func validateAgeSex(text string) models.ValidationResult {
	m := ageSexPattern.FindStringSubmatch(text)
	if m == nil {
		return models.ValidationResult{
			Accepted: false,
			Feedback: "Por favor, proporciona tu edad y sexo biológico. Ejemplo: '25 años, masculino'",
		}
	}

	age, err := strconv.Atoi(m[1])
	if err != nil || age < MinAge || age > MaxAge {
		// The parse succeeded but the value disqualifies; the respondent
		// must resupply rather than have the value silently clamped.
		return models.ValidationResult{
			Accepted: false,
			Feedback: fmt.Sprintf("La edad debe estar entre %d y %d años para participar en el estudio.", MinAge, MaxAge),
		}
	}

	return models.ValidationResult{
		Accepted: true,
		Fields: map[string]string{
			FieldAge: strconv.Itoa(age),
			FieldSex: strings.ToLower(m[2]),
		},
		Feedback: "Edad y sexo registrados correctamente.",
	}
}

func validateAncestry(lowered string) models.ValidationResult {
	// Accept only when the answer affirms that all grandparents share the
	// required nationality. No partial credit.
	allMexican := false
	for _, kw := range ancestryKeywords {
		if strings.Contains(lowered, kw) &&
			(strings.Contains(lowered, "todos") || strings.Contains(lowered, "abuelos")) {
			allMexican = true
			break
		}
	}

	if !allMexican {
		return models.ValidationResult{
			Accepted: false,
			Feedback: "Para participar en EPIMex, es necesario que tus 4 abuelos sean mexicanos. ¿Podrías confirmar la nacionalidad de tus abuelos?",
		}
	}

	return models.ValidationResult{
		Accepted: true,
		Fields:   map[string]string{FieldAncestryValid: "true"},
		Feedback: "Nacionalidad verificada. Cumples el criterio de ancestría mexicana.",
	}
}

func validateDiagnosis(text, lowered string) models.ValidationResult {
	if containsAny(lowered, negativeKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldHasDiagnosis: "false"},
			Feedback: "Sin diagnóstico psiquiátrico registrado.",
		}
	}

	// Accept-by-default: anything that is not a clear "no" counts as an
	// affirmative with detail, scanned for psychotic-spectrum diagnoses.
	return models.ValidationResult{
		Accepted: true,
		Fields: map[string]string{
			FieldHasDiagnosis:       "true",
			FieldDiagnosisDetail:    text,
			FieldPsychoticDiagnosis: boolField(containsAny(lowered, psychoticDiagnoses)),
		},
		Feedback: "Diagnóstico registrado. Continuamos con el tamizaje.",
	}
}

func validateMedication(text, lowered string) models.ValidationResult {
	if containsAny(lowered, negativeKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldTakesMedication: "false"},
			Feedback: "Sin medicamentos registrados.",
		}
	}

	return models.ValidationResult{
		Accepted: true,
		Fields: map[string]string{
			FieldTakesMedication:  "true",
			FieldMedicationDetail: text,
			FieldAntipsychotics:   boolField(containsAny(lowered, antipsychoticMeds)),
		},
		Feedback: "Medicamentos registrados. Continuamos con el tamizaje.",
	}
}

func validateFamilyHistory(text, lowered string) models.ValidationResult {
	if containsAny(lowered, negativeKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldFamilyHistory: "false"},
			Feedback: "Sin antecedentes familiares psiquiátricos registrados.",
		}
	}

	return models.ValidationResult{
		Accepted: true,
		Fields: map[string]string{
			FieldFamilyHistory:     "true",
			FieldFamilyHistoryInfo: text,
			FieldFirstDegree:       boolField(containsAny(lowered, firstDegreeRelatives)),
		},
		Feedback: "Antecedentes familiares registrados. Continuamos con el tamizaje.",
	}
}

func validateCognitive(text, lowered string) models.ValidationResult {
	if containsAny(lowered, negativeKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldCognitiveIssues: "false"},
			Feedback: "Capacidades cognitivas adecuadas para el estudio.",
		}
	}

	return models.ValidationResult{
		Accepted: true,
		Fields: map[string]string{
			FieldCognitiveIssues: "true",
			FieldCognitiveDetail: text,
		},
		Feedback: "Problemas de capacidades registrados. Evaluaremos si afectan la participación.",
	}
}

func validateBioSamples(lowered string) models.ValidationResult {
	// "no puedo" contains "puedo", so the negative set is checked first.
	if containsAny(lowered, samplesNoKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldCanGiveSamples: "false"},
			Feedback: "No puede proporcionar muestras biológicas. Esto puede afectar la elegibilidad.",
		}
	}
	if containsAny(lowered, samplesYesKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldCanGiveSamples: "true"},
			Feedback: "Capacidad para proporcionar muestras biológicas confirmada.",
		}
	}

	// Unclear still degrades toward acceptance, treated as capable.
	return models.ValidationResult{
		Accepted: true,
		Fields:   map[string]string{FieldCanGiveSamples: "true"},
		Feedback: "Capacidad para proporcionar muestras biológicas registrada.",
	}
}

func validatePsychosis(text, lowered string) models.ValidationResult {
	if containsAny(lowered, negativeKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldPsychosisReported: "false"},
			Feedback: "Sin experiencias psicóticas reportadas.",
		}
	}

	if containsAny(lowered, psychosisYesKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields: map[string]string{
				FieldPsychosisReported: "true",
				FieldPsychosisDetail:   text,
			},
			Feedback:         "Experiencias reportadas. Necesitamos hacer algunas preguntas adicionales para evaluar mejor.",
			TriggersFollowUp: true,
		}
	}

	// This is the follow-up trigger question; an ambiguous answer must be
	// clarified before the interview can branch.
	return models.ValidationResult{
		Accepted: false,
		Feedback: "Por favor, responde 'sí' o 'no' sobre si tú o alguien en tu familia ha tenido estas experiencias.",
	}
}

func validateSubstances(text, lowered string) models.ValidationResult {
	if containsAny(lowered, negativeKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldUsesSubstances: "false"},
			Feedback: "Sin consumo de sustancias reportado.",
		}
	}

	return models.ValidationResult{
		Accepted: true,
		Fields: map[string]string{
			FieldUsesSubstances:  "true",
			FieldSubstanceDetail: text,
			FieldKnownSubstance:  boolField(containsAny(lowered, knownSubstances)),
		},
		Feedback: "Consumo de sustancias registrado. Continuamos con el tamizaje.",
	}
}

func validateFamilyParticipation(text, lowered string) models.ValidationResult {
	if containsAny(lowered, negativeKeywords) {
		return models.ValidationResult{
			Accepted: true,
			Fields:   map[string]string{FieldRelativeEnrolled: "false"},
			Feedback: "Sin familiares participantes registrados.",
		}
	}

	return models.ValidationResult{
		Accepted: true,
		Fields: map[string]string{
			FieldRelativeEnrolled: "true",
			FieldRelativeDetail:   text,
		},
		Feedback: "Familiar participante registrado. Esto nos ayuda a coordinar la participación.",
	}
}

func validateInfoSource(text string) models.ValidationResult {
	return models.ValidationResult{
		Accepted: true,
		Fields:   map[string]string{FieldInfoSource: text},
		Feedback: "Fuente de información registrada. ¡Hemos completado el tamizaje inicial!",
	}
}
