// This file implements the eligibility classifier. Classification is a
// fixed decision procedure over the collected fields and the follow-up
// score; it is deterministic and never fails — every input combination
// maps to a result, with ineligible as the catch-all.
package screening

import (
	"log/slog"
	"strconv"

	"github.com/epimex/screenbot/internal/models"
)

// Criteria labels recorded in classification results.
const (
	CriterionAncestry        = "Ancestría mexicana"
	CriterionAncestryMissing = "4 abuelos mexicanos"
	CriterionSamples         = "Puede proporcionar muestras biológicas"
	CriterionSamplesMissing  = "Capacidad para muestras biológicas"
	CriterionCognition       = "Capacidades cognitivas adecuadas"
	CriterionCognitionIssue  = "Problemas de capacidades cognitivas"
	CriterionSymptomatic     = "Síntomas psicóticos presentes"
	CriterionAsymptomatic    = "Sin síntomas psicóticos"
	CriterionRelative        = "Familiar de participante"
)

// Age band boundaries for the proband/control vs relative branch.
const (
	probandMaxAge = 21
	relativeMinAge = 22
)

// minProbandScore is the follow-up total at or above which a young
// respondent is classified as proband.
const minProbandScore = 3

// Classify derives the eligibility category from collected fields and the
// follow-up score. All three hard gates are evaluated regardless of
// earlier failures so the criteria lists stay complete.
func Classify(fields map[string]string, score models.FollowUpScore) models.ClassificationResult {
	var satisfied, missing []string

	if fields[FieldAncestryValid] == "true" {
		satisfied = append(satisfied, CriterionAncestry)
	} else {
		missing = append(missing, CriterionAncestryMissing)
	}

	if fields[FieldCanGiveSamples] == "true" {
		satisfied = append(satisfied, CriterionSamples)
	} else {
		missing = append(missing, CriterionSamplesMissing)
	}

	if fields[FieldCognitiveIssues] != "true" {
		satisfied = append(satisfied, CriterionCognition)
	} else {
		missing = append(missing, CriterionCognitionIssue)
	}

	category := models.EligibilityIneligible
	if len(missing) == 0 {
		age, _ := strconv.Atoi(fields[FieldAge])
		switch {
		case age >= MinAge && age <= probandMaxAge:
			if score.Total >= minProbandScore || fields[FieldPsychoticDiagnosis] == "true" {
				category = models.EligibilityProband
				satisfied = append(satisfied, CriterionSymptomatic)
			} else if fields[FieldPsychosisReported] != "true" && fields[FieldFamilyHistory] != "true" {
				category = models.EligibilityControl
				satisfied = append(satisfied, CriterionAsymptomatic)
			}
			// Neither clearly symptomatic nor clearly clean stays ineligible.
		case age >= relativeMinAge && age <= MaxAge:
			if fields[FieldRelativeEnrolled] == "true" || fields[FieldFamilyHistory] == "true" {
				category = models.EligibilityRelative
				satisfied = append(satisfied, CriterionRelative)
			}
		default:
			// Age outside [MinAge, MaxAge] should not survive validation,
			// but an inconsistent session must still classify.
		}
	}

	result := models.ClassificationResult{
		Category:          category,
		Eligible:          category != models.EligibilityIneligible,
		SatisfiedCriteria: satisfied,
		MissingCriteria:   missing,
		Score:             score,
	}

	slog.Info("screening.Classify", "category", result.Category, "eligible", result.Eligible,
		"satisfied", len(satisfied), "missing", len(missing), "followup_total", score.Total)
	return result
}
