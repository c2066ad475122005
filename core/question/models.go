package question

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/user"
)

type Type string

const (
	Objective  Type = "OBJ"
	Subjective Type = "SUB"
)

var (
	EducationLevels = []string{
		"1º ano EF", "2º ano EF", "3º ano EF", "4º ano EF", "5º ano EF",
		"6º ano EF", "7º ano EF", "8º ano EF", "9º ano EF",
		"1º ano EM", "2º ano EM", "3º ano EM",
		"Graduação", "Especialização", "Mestrado", "Doutorado",
	}
	DifficultyLevels = []string{"Muito fácil", "Fácil", "Médio", "Difícil", "Muito difícil"}
)

type (
	Statement struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}

	Alternative struct {
		ID         string `json:"id"`
		QuestionID string `json:"question"`
		Content    string `json:"content"`
		Correct    bool   `json:"correct"`
		Position   int    `json:"position"`
	}

	Question struct {
		ID             string                  `json:"id"`
		Type           Type                    `json:"type"`
		Statement      Statement               `json:"statement"`
		Disciplines    []discipline.Discipline `json:"disciplines"`
		Alternatives   []Alternative           `json:"alternatives"`
		EducationLevel string                  `json:"education_level"`
		Difficulty     string                  `json:"difficulty"`
		ExamReference  string                  `json:"exam_reference"`
		Creator        user.Summary            `json:"creator"`
		QuestionBanks  []string                `json:"question_banks"`
		CreatedAt      time.Time               `json:"created_at"` // UTC
		UpdatedAt      time.Time               `json:"updated_at"` // UTC
	}

	// Summary is the representation of a Question nested in banks and exams.
	Summary struct {
		ID   string `json:"id"`
		Type Type   `json:"type"`
		Text string `json:"text"`
	}
)

func (q Question) Summary() Summary {
	return Summary{ID: q.ID, Type: q.Type, Text: q.Statement.Text}
}

func (q Question) DisciplineRefs() []discipline.Ref {
	refs := make([]discipline.Ref, 0, len(q.Disciplines))
	for _, d := range q.Disciplines {
		refs = append(refs, discipline.RefByID(d.ID))
	}
	return refs
}

// NewStatement is the payload of a Question statement: a text, an image URL or both.
type NewStatement struct {
	Text  string `json:"text"`
	Image string `json:"image" validate:"omitempty,url"`
}

func (ns *NewStatement) clean() {
	ns.Text = core.CleanString(ns.Text)
	ns.Image = core.CleanString(ns.Image)
}

func (ns NewStatement) isEmpty() bool {
	return ns.Text == "" && ns.Image == ""
}

type NewAlternative struct {
	Content string `json:"content" validate:"required,notblank"`
	Correct bool   `json:"correct"`
}

func newAlternatives(nas []NewAlternative) []Alternative {
	alts := make([]Alternative, 0, len(nas))
	for i, na := range nas {
		alts = append(alts, Alternative{Content: core.CleanString(na.Content), Correct: na.Correct, Position: i})
	}
	return alts
}

// NewQuestion contains information needed to create a Question.
// Text is a shortcut for a text-only statement.
type NewQuestion struct {
	Type           Type             `json:"type" validate:"required,qtype"`
	Text           string           `json:"text"`
	Statement      NewStatement     `json:"statement"`
	Disciplines    []discipline.Ref `json:"disciplines"`
	Alternatives   []NewAlternative `json:"alternatives" validate:"dive"`
	EducationLevel string           `json:"education_level" validate:"omitempty,edulevel"`
	Difficulty     string           `json:"difficulty" validate:"omitempty,difficulty"`
	ExamReference  string           `json:"exam_reference" validate:"max=255"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Statement.clean()
	if text := core.CleanString(nq.Text); text != "" && nq.Statement.Text == "" {
		nq.Statement.Text = text
	}
	nq.EducationLevel = core.CleanString(nq.EducationLevel)
	nq.Difficulty = core.CleanString(nq.Difficulty)
	nq.ExamReference = core.CleanString(nq.ExamReference)

	if err := validate.Struct(nq); err != nil {
		return err
	}
	if nq.Statement.isEmpty() {
		return core.NewFieldError("statement", errEmptyStatement)
	}
	if err := discipline.CleanRefs("disciplines", nq.Disciplines); err != nil {
		return err
	}
	return nq.Type.variant().checkAlternatives(nq.Alternatives)
}

// UpdateQuestion defines what information may be provided to modify an existing Question.
// Absent fields keep their current value; Disciplines and Alternatives are replaced as a whole.
type UpdateQuestion struct {
	Type           *Type             `json:"type" validate:"omitempty,qtype"`
	Statement      *NewStatement     `json:"statement"`
	Disciplines    *[]discipline.Ref `json:"disciplines"`
	Alternatives   *[]NewAlternative `json:"alternatives" validate:"omitempty,dive"`
	EducationLevel *string           `json:"education_level" validate:"omitempty,edulevel"`
	Difficulty     *string           `json:"difficulty" validate:"omitempty,difficulty"`
	ExamReference  *string           `json:"exam_reference" validate:"omitempty,max=255"`
}

func (uq *UpdateQuestion) Validate(orig Question, validate *validator.Validate) error {
	if uq.Statement != nil {
		uq.Statement.clean()
	}
	for _, s := range []*string{uq.EducationLevel, uq.Difficulty, uq.ExamReference} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}

	if err := validate.Struct(uq); err != nil {
		return err
	}
	if uq.Statement != nil && uq.Statement.isEmpty() {
		return core.NewFieldError("statement", errEmptyStatement)
	}
	if uq.Disciplines != nil {
		if err := discipline.CleanRefs("disciplines", *uq.Disciplines); err != nil {
			return err
		}
	}

	typ := orig.Type
	if uq.Type != nil {
		typ = *uq.Type
	}
	switch {
	case uq.Alternatives != nil:
		return typ.variant().checkAlternatives(*uq.Alternatives)
	case typ == Objective && len(orig.Alternatives) == 0:
		return core.NewFieldError("alternatives", errNoAlternatives)
	}
	return nil
}

type NewAlternativeRequest struct {
	Question string `json:"question" validate:"required"`
	Content  string `json:"content" validate:"required,notblank"`
	Correct  bool   `json:"correct"`
}

func (nar *NewAlternativeRequest) Validate(validate *validator.Validate) error {
	nar.Question = core.CleanString(nar.Question)
	nar.Content = core.CleanString(nar.Content)
	return validate.Struct(nar)
}

type UpdateAlternative struct {
	Content *string `json:"content" validate:"omitempty,notblank"`
	Correct *bool   `json:"correct"`
}

func (ua *UpdateAlternative) Validate(validate *validator.Validate) error {
	if ua.Content != nil {
		content := core.CleanString(*ua.Content)
		ua.Content = &content
	}
	return validate.Struct(ua)
}

type QueryFilter struct {
	IDs        []string
	CreatorID  string
	Type       string `query:"type"`
	Discipline string `query:"discipline"`
	Search     string `query:"search"` // case-insensitive match on the statement text
}

func (qf *QueryFilter) Clean() {
	qf.Type = core.CleanString(qf.Type)
	qf.Discipline = core.CleanString(qf.Discipline)
	qf.Search = core.CleanString(qf.Search)
}

type AlternativeFilter struct {
	Question  string `query:"question"`
	CreatorID string // restricts to alternatives of Questions created by this User
}
