package bank

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

// predominantCount is the number of predominant disciplines reported for a QuestionBank.
const predominantCount = 2

type (
	QuestionBank struct {
		ID                     string                  `json:"id"`
		Name                   string                  `json:"name"`
		Description            string                  `json:"description"`
		Owner                  user.Summary            `json:"owner"`
		Collaborators          []user.Summary          `json:"collaborators"`
		Disciplines            []discipline.Discipline `json:"disciplines"`
		Questions              []question.Summary      `json:"questions"`
		PredominantDisciplines []string                `json:"predominant_disciplines"`
		CreatedAt              time.Time               `json:"created_at"` // UTC
		UpdatedAt              time.Time               `json:"updated_at"` // UTC
	}

	Summary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
)

func (b QuestionBank) Summary() Summary {
	return Summary{ID: b.ID, Name: b.Name}
}

func (b QuestionBank) QuestionIDs() []string {
	ids := make([]string, 0, len(b.Questions))
	for _, q := range b.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func (b QuestionBank) DisciplineRefs() []discipline.Ref {
	refs := make([]discipline.Ref, 0, len(b.Disciplines))
	for _, d := range b.Disciplines {
		refs = append(refs, discipline.RefByID(d.ID))
	}
	return refs
}

// NewQuestionBank contains information needed to create a QuestionBank.
type NewQuestionBank struct {
	Name          string           `json:"name" validate:"required,notblank,max=150"`
	Description   string           `json:"description"`
	Collaborators []string         `json:"collaborators"`
	Disciplines   []discipline.Ref `json:"disciplines"`
	Questions     []string         `json:"questions"`
}

func (nb *NewQuestionBank) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.Collaborators = core.UniqueStrings(nb.Collaborators)
	nb.Questions = core.UniqueStrings(nb.Questions)
	if err := validate.Struct(nb); err != nil {
		return err
	}
	return discipline.CleanRefs("disciplines", nb.Disciplines)
}

// UpdateQuestionBank defines what information may be provided to modify an existing QuestionBank.
// Absent fields keep their current value; lists are replaced as a whole.
type UpdateQuestionBank struct {
	Name          *string           `json:"name" validate:"omitempty,notblank,max=150"`
	Description   *string           `json:"description"`
	Collaborators *[]string         `json:"collaborators"`
	Disciplines   *[]discipline.Ref `json:"disciplines"`
	Questions     *[]string         `json:"questions"`
}

func (ub *UpdateQuestionBank) Validate(validate *validator.Validate) error {
	if ub.Name != nil {
		name := core.CleanString(*ub.Name)
		ub.Name = &name
	}
	if ub.Description != nil {
		desc := core.CleanString(*ub.Description)
		ub.Description = &desc
	}
	if ub.Collaborators != nil {
		ids := core.UniqueStrings(*ub.Collaborators)
		ub.Collaborators = &ids
	}
	if ub.Questions != nil {
		ids := core.UniqueStrings(*ub.Questions)
		ub.Questions = &ids
	}
	if err := validate.Struct(ub); err != nil {
		return err
	}
	if ub.Disciplines != nil {
		return discipline.CleanRefs("disciplines", *ub.Disciplines)
	}
	return nil
}

type QueryFilter struct {
	MemberID string // restricts to banks owned by or shared with this User
	Search   string `query:"search"`
}

// PredominantDisciplines returns the names of the disciplines most used by questions,
// most frequent first and ties broken by name.
func PredominantDisciplines(questions []question.Question) []string {
	counts := make(map[string]int)
	for _, q := range questions {
		for _, d := range q.Disciplines {
			counts[d.Name]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > predominantCount {
		names = names[:predominantCount]
	}
	return names
}
