package screening

import (
	"reflect"
	"testing"

	"github.com/epimex/screenbot/internal/models"
)

func baseFields(age string) map[string]string {
	return map[string]string{
		FieldAge:             age,
		FieldAncestryValid:   "true",
		FieldCanGiveSamples:  "true",
		FieldCognitiveIssues: "false",
	}
}

func TestClassifyControlScenario(t *testing.T) {
	fields := baseFields("16")
	fields[FieldPsychosisReported] = "false"
	fields[FieldFamilyHistory] = "false"

	res := Classify(fields, models.FollowUpScore{})
	if res.Category != models.EligibilityControl || !res.Eligible {
		t.Errorf("expected eligible control, got %+v", res)
	}
}

func TestClassifyProbandByScore(t *testing.T) {
	fields := baseFields("17")
	fields[FieldPsychosisReported] = "true"

	res := Classify(fields, models.FollowUpScore{Hallucinations: 3, Delusions: 1, Total: 4})
	if res.Category != models.EligibilityProband || !res.Eligible {
		t.Errorf("expected eligible proband, got %+v", res)
	}
}

func TestClassifyProbandByDiagnosis(t *testing.T) {
	fields := baseFields("14")
	fields[FieldPsychoticDiagnosis] = "true"

	res := Classify(fields, models.FollowUpScore{})
	if res.Category != models.EligibilityProband {
		t.Errorf("expected proband via diagnosis sub-flag, got %+v", res)
	}
}

func TestClassifyAmbiguousYoungRespondentIneligible(t *testing.T) {
	// Gates pass, age 10-21, but the presentation is neither clearly
	// symptomatic (score below threshold) nor clearly clean (family
	// history reported).
	fields := baseFields("18")
	fields[FieldPsychosisReported] = "true"
	fields[FieldFamilyHistory] = "true"

	res := Classify(fields, models.FollowUpScore{Hallucinations: 1, Delusions: 0, Total: 1})
	if res.Category != models.EligibilityIneligible || res.Eligible {
		t.Errorf("expected ineligible for ambiguous presentation, got %+v", res)
	}
}

func TestClassifyRelative(t *testing.T) {
	byEnrollment := baseFields("30")
	byEnrollment[FieldRelativeEnrolled] = "true"
	if res := Classify(byEnrollment, models.FollowUpScore{}); res.Category != models.EligibilityRelative {
		t.Errorf("expected relative via enrolled family member, got %+v", res)
	}

	byHistory := baseFields("45")
	byHistory[FieldFamilyHistory] = "true"
	if res := Classify(byHistory, models.FollowUpScore{}); res.Category != models.EligibilityRelative {
		t.Errorf("expected relative via family history, got %+v", res)
	}

	neither := baseFields("45")
	if res := Classify(neither, models.FollowUpScore{}); res.Category != models.EligibilityIneligible {
		t.Errorf("expected ineligible adult without family link, got %+v", res)
	}
}

func TestClassifyHardGatesEvaluatedIndependently(t *testing.T) {
	// All three gates fail; each must appear in the missing list even
	// though the first failure already forces ineligibility.
	fields := map[string]string{
		FieldAge:             "16",
		FieldAncestryValid:   "false",
		FieldCanGiveSamples:  "false",
		FieldCognitiveIssues: "true",
	}

	res := Classify(fields, models.FollowUpScore{Total: 6})
	if res.Category != models.EligibilityIneligible || res.Eligible {
		t.Fatalf("expected ineligible, got %+v", res)
	}
	if len(res.MissingCriteria) != 3 {
		t.Errorf("expected all three gate failures listed, got %v", res.MissingCriteria)
	}
}

func TestClassifyAncestryGateForcesIneligible(t *testing.T) {
	fields := baseFields("17")
	fields[FieldAncestryValid] = "false"
	fields[FieldPsychoticDiagnosis] = "true"

	res := Classify(fields, models.FollowUpScore{Total: 6})
	if res.Eligible {
		t.Fatalf("ancestry gate failure must force ineligibility, got %+v", res)
	}
	found := false
	for _, m := range res.MissingCriteria {
		if m == CriterionAncestryMissing {
			found = true
		}
	}
	if !found {
		t.Errorf("missing criteria %v do not include the ancestry criterion", res.MissingCriteria)
	}
}

func TestClassifyAgeOutsideRangeIneligible(t *testing.T) {
	for _, age := range []string{"5", "80", "", "abc"} {
		fields := baseFields(age)
		if res := Classify(fields, models.FollowUpScore{Total: 6}); res.Category != models.EligibilityIneligible {
			t.Errorf("age %q should classify as ineligible, got %+v", age, res)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	fields := baseFields("17")
	fields[FieldPsychosisReported] = "true"
	score := models.FollowUpScore{Hallucinations: 2, Delusions: 2, Total: 4}

	first := Classify(fields, score)
	for i := 0; i < 5; i++ {
		if got := Classify(fields, score); !reflect.DeepEqual(first, got) {
			t.Fatalf("classification not deterministic: %+v vs %+v", first, got)
		}
	}
}
