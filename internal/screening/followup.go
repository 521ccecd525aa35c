// This file scores the psychosis follow-up sub-interview. Follow-up
// answers are never rejected; any text is recorded and scored.
package screening

import (
	"strings"

	"github.com/epimex/screenbot/internal/models"
)

// MaxCategoryScore is the per-category clamp applied before reporting.
const MaxCategoryScore = 3

var (
	realityKeywords     = []string{"real", "verdad"}
	imaginationKeywords = []string{"imaginación", "imaginacion", "sueño", "sueno"}
	frequencyKeywords   = []string{"frecuente", "siempre"}
	affirmativeTokens   = []string{"sí", "si"}
)

// ScoreAnswer scores a single raw follow-up answer for its category.
// Perceptual answers weigh conviction (reality-affirming language) over
// imagination/dream attributions; belief answers weigh any affirmation.
// Both add a point for frequency-intensifying language.
func ScoreAnswer(category models.FollowUpCategory, rawText string) int {
	lowered := strings.ToLower(rawText)
	score := 0

	switch category {
	case models.FollowUpHallucinations:
		if containsAny(lowered, realityKeywords) {
			score += 2
		} else if containsAny(lowered, imaginationKeywords) {
			score++
		}
		if containsAny(lowered, frequencyKeywords) {
			score++
		}
	case models.FollowUpDelusions:
		if containsAny(lowered, affirmativeTokens) {
			score++
		}
		if containsAny(lowered, frequencyKeywords) {
			score++
		}
	}

	return score
}

// ScoreFollowUp recomputes the aggregate follow-up score from recorded
// answers. Each category total is clamped to MaxCategoryScore; Total is
// the sum of the two clamped values.
func ScoreFollowUp(answers []models.FollowUpAnswer) models.FollowUpScore {
	var hallucinations, delusions int
	for _, a := range answers {
		switch a.Category {
		case models.FollowUpHallucinations:
			hallucinations += ScoreAnswer(a.Category, a.Answer)
		case models.FollowUpDelusions:
			delusions += ScoreAnswer(a.Category, a.Answer)
		}
	}

	if hallucinations > MaxCategoryScore {
		hallucinations = MaxCategoryScore
	}
	if delusions > MaxCategoryScore {
		delusions = MaxCategoryScore
	}

	return models.FollowUpScore{
		Hallucinations: hallucinations,
		Delusions:      delusions,
		Total:          hallucinations + delusions,
	}
}
