package screening

import (
	"strconv"
	"testing"

	"github.com/epimex/screenbot/internal/models"
)

func TestValidateAgeSexAcceptsFullRange(t *testing.T) {
	tokens := []string{"masculino", "femenino", "hombre", "mujer", "otro"}
	for age := MinAge; age <= MaxAge; age++ {
		for _, tok := range tokens {
			res, err := Validate(1, strconv.Itoa(age)+" años, "+tok)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.Accepted {
				t.Fatalf("age %d %s rejected: %q", age, tok, res.Feedback)
			}
			if res.Fields[FieldAge] != strconv.Itoa(age) || res.Fields[FieldSex] != tok {
				t.Fatalf("age %d %s extracted %v", age, tok, res.Fields)
			}
		}
	}
}

func TestValidateAgeSexRejectsOutOfRange(t *testing.T) {
	for _, age := range []int{0, 5, 9, 76, 90, 120} {
		res, err := Validate(1, strconv.Itoa(age)+" masculino")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Accepted {
			t.Errorf("age %d should be rejected", age)
		}
		if res.Feedback == "" {
			t.Errorf("age %d rejection carries no feedback", age)
		}
		if len(res.Fields) != 0 {
			t.Errorf("rejected answer extracted fields: %v", res.Fields)
		}
	}
}

func TestValidateAgeSexRejectsUnparseable(t *testing.T) {
	for _, text := range []string{"", "hola", "veinte años mujer", "masculino"} {
		res, err := Validate(1, text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Accepted {
			t.Errorf("%q should be rejected", text)
		}
	}
}

func TestValidateAncestry(t *testing.T) {
	cases := []struct {
		text   string
		accept bool
	}{
		{"Todos mis abuelos son mexicanos", true},
		{"Sí, mis 4 abuelos nacieron en México", true},
		{"Mi abuela es española", false},
		{"mexicanos", false}, // nationality alone, no all-four affirmation
		{"no sé", false},
	}
	for _, c := range cases {
		res, err := Validate(2, c.text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Accepted != c.accept {
			t.Errorf("ancestry %q: accepted=%v, want %v", c.text, res.Accepted, c.accept)
		}
		if c.accept && res.Fields[FieldAncestryValid] != "true" {
			t.Errorf("ancestry %q did not set the validity field", c.text)
		}
	}
}

func TestValidateYesNoCategoriesAcceptByDefault(t *testing.T) {
	// Questions 3,4,5,6,9,10 accept anything; unclear text counts as an
	// affirmative with detail.
	for _, number := range []int{3, 4, 5, 6, 9, 10} {
		res, err := Validate(number, "pues es complicado de explicar")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Accepted {
			t.Errorf("question %d rejected an unclear answer: %q", number, res.Feedback)
		}
	}
}

func TestValidateClinicalSubFlags(t *testing.T) {
	res, _ := Validate(3, "me diagnosticaron esquizofrenia hace dos años")
	if res.Fields[FieldPsychoticDiagnosis] != "true" {
		t.Error("psychotic-spectrum diagnosis not flagged")
	}

	res, _ = Validate(3, "tengo ansiedad generalizada")
	if res.Fields[FieldPsychoticDiagnosis] != "false" {
		t.Error("non-psychotic diagnosis incorrectly flagged")
	}

	res, _ = Validate(4, "tomo risperidona por las noches")
	if res.Fields[FieldAntipsychotics] != "true" {
		t.Error("antipsychotic medication not flagged")
	}

	res, _ = Validate(5, "mi madre tiene depresión")
	if res.Fields[FieldFirstDegree] != "true" {
		t.Error("first-degree relative not flagged")
	}
	if res.Fields[FieldFamilyHistory] != "true" {
		t.Error("family history not set")
	}

	res, _ = Validate(9, "marihuana de vez en cuando")
	if res.Fields[FieldKnownSubstance] != "true" {
		t.Error("known substance not flagged")
	}
}

func TestValidateNegativeKeywordsSetFalse(t *testing.T) {
	cases := map[int]string{
		3:  FieldHasDiagnosis,
		4:  FieldTakesMedication,
		5:  FieldFamilyHistory,
		6:  FieldCognitiveIssues,
		9:  FieldUsesSubstances,
		10: FieldRelativeEnrolled,
	}
	for number, field := range cases {
		res, err := Validate(number, "No, ninguno")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Accepted || res.Fields[field] != "false" {
			t.Errorf("question %d negative answer: accepted=%v fields=%v", number, res.Accepted, res.Fields)
		}
	}
}

func TestValidateBioSamples(t *testing.T) {
	res, _ := Validate(7, "no puedo donar sangre")
	if res.Fields[FieldCanGiveSamples] != "false" {
		t.Error("negative samples answer not recorded, the 'no' set must win over the 'puedo' substring")
	}

	res, _ = Validate(7, "sí, claro que puedo")
	if res.Fields[FieldCanGiveSamples] != "true" {
		t.Error("affirmative samples answer not recorded")
	}

	res, _ = Validate(7, "supongo que está bien")
	if !res.Accepted || res.Fields[FieldCanGiveSamples] != "true" {
		t.Error("unclear samples answer should degrade toward acceptance")
	}
}

func TestValidatePsychosisTrigger(t *testing.T) {
	res, _ := Validate(8, "Sí, he visto sombras")
	if !res.Accepted || !res.TriggersFollowUp {
		t.Error("affirmative psychosis answer must trigger the follow-up")
	}
	if res.Fields[FieldPsychosisReported] != "true" {
		t.Error("psychosis affirmative field not set")
	}

	res, _ = Validate(8, "No, nunca")
	if !res.Accepted || res.TriggersFollowUp {
		t.Error("negative psychosis answer must not trigger the follow-up")
	}
	if res.Fields[FieldPsychosisReported] != "false" {
		t.Error("psychosis negative field not set")
	}

	res, _ = Validate(8, "a veces me pasa algo raro")
	if res.Accepted {
		t.Error("ambiguous trigger answer must be clarified, not accepted")
	}
}

func TestValidateInfoSourceAlwaysAccepts(t *testing.T) {
	for _, text := range []string{"Facebook", "mi doctora me contó", ""} {
		res, err := Validate(11, text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Accepted {
			t.Errorf("information source %q rejected", text)
		}
	}
}

func TestValidateUnknownQuestion(t *testing.T) {
	if _, err := Validate(0, "hola"); err != models.ErrUnknownQuestion {
		t.Errorf("expected ErrUnknownQuestion for 0, got %v", err)
	}
	if _, err := Validate(12, "hola"); err != models.ErrUnknownQuestion {
		t.Errorf("expected ErrUnknownQuestion for 12, got %v", err)
	}
}

func TestQuestionBankShape(t *testing.T) {
	if QuestionCount() != 11 {
		t.Fatalf("expected 11 questions, got %d", QuestionCount())
	}
	for i := 1; i <= QuestionCount(); i++ {
		q, ok := GetQuestion(i)
		if !ok || q.Number != i || q.Prompt == "" {
			t.Errorf("question %d malformed: %+v ok=%v", i, q, ok)
		}
		if q.OpensFollowUp != (i == 8) {
			t.Errorf("question %d follow-up flag wrong", i)
		}
	}
	if _, ok := NextQuestion(QuestionCount()); ok {
		t.Error("NextQuestion past the end should report false")
	}
}
