package question

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sistira/core"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

// fieldError returns the message of the first field error of err, if any.
func fieldError(err error) (string, string) {
	if vErr, ok := err.(*core.ValidationError); ok && len(vErr.Fields) > 0 {
		return vErr.Fields[0].Field, vErr.Fields[0].Error
	}
	return "", ""
}

func TestNewQuestion_Validate(t *testing.T) {
	validate := newValidator()
	right := NewAlternative{Content: "4", Correct: true}
	wrong := NewAlternative{Content: "5"}

	tests := []struct {
		name      string
		nq        NewQuestion
		wantField string
		wantMsg   string
	}{
		{name: "objective", nq: NewQuestion{Type: Objective, Text: "2 + 2?", Alternatives: []NewAlternative{wrong, right}}},
		{name: "subjective", nq: NewQuestion{Type: Subjective, Statement: NewStatement{Image: "https://cdn.test.cd/q.png"}}},
		{
			name:      "empty statement",
			nq:        NewQuestion{Type: Subjective, Text: "  "},
			wantField: "statement", wantMsg: errEmptyStatement,
		},
		{
			name:      "objective without alternatives",
			nq:        NewQuestion{Type: Objective, Text: "2 + 2?"},
			wantField: "alternatives", wantMsg: errNoAlternatives,
		},
		{
			name:      "objective without a correct alternative",
			nq:        NewQuestion{Type: Objective, Text: "2 + 2?", Alternatives: []NewAlternative{wrong}},
			wantField: "alternatives", wantMsg: errNoCorrectAlt,
		},
		{
			name:      "subjective with alternatives",
			nq:        NewQuestion{Type: Subjective, Text: "Why?", Alternatives: []NewAlternative{right}},
			wantField: "alternatives", wantMsg: errSubjectiveHasAlts,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nq.Validate(validate)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			field, msg := fieldError(err)
			if field != tt.wantField || msg != tt.wantMsg {
				t.Errorf("Validate() error = %q: %q; want %q: %q", field, msg, tt.wantField, tt.wantMsg)
			}
		})
	}

	t.Run("invalid type", func(t *testing.T) {
		nq := NewQuestion{Type: "MCQ", Text: "Why?"}
		if _, ok := nq.Validate(validate).(validator.ValidationErrors); !ok {
			t.Error("Validate() should fail on the type")
		}
	})

	t.Run("text shortcut", func(t *testing.T) {
		nq := NewQuestion{Type: Subjective, Text: " Why? "}
		if err := nq.Validate(validate); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if nq.Statement.Text != "Why?" {
			t.Errorf("Statement.Text = %q, want %q", nq.Statement.Text, "Why?")
		}
	})
}

func TestUpdateQuestion_Validate(t *testing.T) {
	validate := newValidator()
	objective := Question{Type: Objective, Alternatives: []Alternative{{Content: "4", Correct: true}}}
	subjective := Question{Type: Subjective}
	obj, sub := Objective, Subjective
	noAlts := []NewAlternative{}

	tests := []struct {
		name      string
		orig      Question
		uq        UpdateQuestion
		wantField string
		wantMsg   string
	}{
		{name: "nothing", orig: objective},
		{name: "objective to subjective", orig: objective, uq: UpdateQuestion{Type: &sub}},
		{
			name: "subjective to objective without alternatives", orig: subjective, uq: UpdateQuestion{Type: &obj},
			wantField: "alternatives", wantMsg: errNoAlternatives,
		},
		{
			name: "removing every alternative", orig: objective, uq: UpdateQuestion{Alternatives: &noAlts},
			wantField: "alternatives", wantMsg: errNoAlternatives,
		},
		{
			name: "blank statement", orig: objective, uq: UpdateQuestion{Statement: &NewStatement{Text: " "}},
			wantField: "statement", wantMsg: errEmptyStatement,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.uq.Validate(tt.orig, validate)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			field, msg := fieldError(err)
			if field != tt.wantField || msg != tt.wantMsg {
				t.Errorf("Validate() error = %q: %q; want %q: %q", field, msg, tt.wantField, tt.wantMsg)
			}
		})
	}
}
