package exam

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

type (
	Exam struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Duration    int    `json:"duration"` // minutes
		// QuestionBank is the bank whose questions were copied into the Exam, if any.
		QuestionBank  *bank.Summary      `json:"question_bank"`
		Questions     []question.Summary `json:"questions"`
		Owner         user.Summary       `json:"owner"`
		Collaborators []user.Summary     `json:"collaborators"`
		CreatedAt     time.Time          `json:"created_at"` // UTC
		UpdatedAt     time.Time          `json:"updated_at"` // UTC
	}

	Summary struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Duration int    `json:"duration"`
	}
)

func (e Exam) Summary() Summary {
	return Summary{ID: e.ID, Title: e.Title, Duration: e.Duration}
}

func (e Exam) QuestionIDs() []string {
	ids := make([]string, 0, len(e.Questions))
	for _, q := range e.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// NewExam contains information needed to create an Exam.
// When QuestionBank is set, the questions of the bank are copied into the Exam
// along with the explicit Questions.
type NewExam struct {
	Title         string   `json:"title" validate:"required,notblank,max=150"`
	Description   string   `json:"description"`
	Duration      int      `json:"duration" validate:"required,gt=0"`
	QuestionBank  string   `json:"question_bank"`
	Questions     []string `json:"questions"`
	Collaborators []string `json:"collaborators"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.QuestionBank = core.CleanString(ne.QuestionBank)
	ne.Questions = core.UniqueStrings(ne.Questions)
	ne.Collaborators = core.UniqueStrings(ne.Collaborators)
	return validate.Struct(ne)
}

// UpdateExam defines what information may be provided to modify an existing Exam.
// Absent fields keep their current value; lists are replaced as a whole.
type UpdateExam struct {
	Title         *string   `json:"title" validate:"omitempty,notblank,max=150"`
	Description   *string   `json:"description"`
	Duration      *int      `json:"duration" validate:"omitempty,gt=0"`
	Questions     *[]string `json:"questions"`
	Collaborators *[]string `json:"collaborators"`
}

func (ue *UpdateExam) Validate(validate *validator.Validate) error {
	if ue.Title != nil {
		title := core.CleanString(*ue.Title)
		ue.Title = &title
	}
	if ue.Description != nil {
		desc := core.CleanString(*ue.Description)
		ue.Description = &desc
	}
	if ue.Questions != nil {
		ids := core.UniqueStrings(*ue.Questions)
		ue.Questions = &ids
	}
	if ue.Collaborators != nil {
		ids := core.UniqueStrings(*ue.Collaborators)
		ue.Collaborators = &ids
	}
	return validate.Struct(ue)
}

type AddQuestions struct {
	Questions []string `json:"questions" validate:"required,min=1"`
}

func (aq *AddQuestions) Validate(validate *validator.Validate) error {
	aq.Questions = core.UniqueStrings(aq.Questions)
	return validate.Struct(aq)
}

type AddQuestionBank struct {
	QuestionBank string `json:"question_bank" validate:"required"`
}

func (ab *AddQuestionBank) Validate(validate *validator.Validate) error {
	ab.QuestionBank = core.CleanString(ab.QuestionBank)
	return validate.Struct(ab)
}

type QueryFilter struct {
	MemberID string // restricts to exams owned by or shared with this User
	Search   string `query:"search"`
}
