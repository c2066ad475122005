package discipline

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sistira/core"
)

type StudyArea struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type Discipline struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StudyArea   StudyArea `json:"study_area"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type NewStudyArea struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description"`
}

func (nsa *NewStudyArea) Validate(validate *validator.Validate) error {
	nsa.Name = core.CleanString(nsa.Name)
	nsa.Description = core.CleanString(nsa.Description)
	return validate.Struct(nsa)
}

type UpdateStudyArea struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description"`
}

func (usa *UpdateStudyArea) Validate(validate *validator.Validate) error {
	if usa.Name != nil {
		name := core.CleanString(*usa.Name)
		usa.Name = &name
	}
	return validate.Struct(usa)
}

// StudyAreaRef references a StudyArea either by ID or by an inline payload that is resolved by name.
// It is decoded from `"<id>"` or `{"name": "...", "description": "..."}`.
type StudyAreaRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (ref *StudyAreaRef) UnmarshalJSON(data []byte) error {
	if id, ok, err := unmarshalID(data); ok || err != nil {
		ref.ID = id
		return err
	}
	type inline StudyAreaRef
	var v inline
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*ref = StudyAreaRef(v)
	return nil
}

func (ref StudyAreaRef) IsZero() bool {
	return ref.ID == "" && ref.Name == ""
}

func (ref *StudyAreaRef) clean() {
	ref.ID = core.CleanString(ref.ID)
	ref.Name = core.CleanString(ref.Name)
	ref.Description = core.CleanString(ref.Description)
}

type NewDiscipline struct {
	Name        string       `json:"name" validate:"required,notblank,max=100"`
	Description string       `json:"description"`
	StudyArea   StudyAreaRef `json:"study_area"`
}

func (nd *NewDiscipline) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	nd.Description = core.CleanString(nd.Description)
	nd.StudyArea.clean()
	if err := validate.Struct(nd); err != nil {
		return err
	}
	if nd.StudyArea.IsZero() {
		return core.NewFieldError("study_area", "this field is required")
	}
	return nil
}

type UpdateDiscipline struct {
	Name        *string       `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string       `json:"description"`
	StudyArea   *StudyAreaRef `json:"study_area"`
}

func (ud *UpdateDiscipline) Validate(validate *validator.Validate) error {
	if ud.Name != nil {
		name := core.CleanString(*ud.Name)
		ud.Name = &name
	}
	if ud.StudyArea != nil {
		ud.StudyArea.clean()
		if ud.StudyArea.IsZero() {
			return core.NewFieldError("study_area", "this field cannot be blank")
		}
	}
	return validate.Struct(ud)
}

// Ref references a Discipline either by ID or by an inline payload resolved by name within its StudyArea.
// It is decoded from `"<id>"` or `{"name": "...", "study_area": <StudyAreaRef>}`.
type Ref struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StudyArea   StudyAreaRef `json:"study_area"`
}

func (ref *Ref) UnmarshalJSON(data []byte) error {
	if id, ok, err := unmarshalID(data); ok || err != nil {
		ref.ID = id
		return err
	}
	type inline Ref
	var v inline
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*ref = Ref(v)
	return nil
}

// RefByID returns a Ref to an existing Discipline.
func RefByID(id string) Ref {
	return Ref{ID: id}
}

// CleanRefs trims refs and checks that every inline ref names its Discipline and StudyArea.
func CleanRefs(field string, refs []Ref) error {
	for i := range refs {
		ref := &refs[i]
		ref.ID = core.CleanString(ref.ID)
		ref.Name = core.CleanString(ref.Name)
		ref.Description = core.CleanString(ref.Description)
		ref.StudyArea.clean()
		if ref.ID == "" && (ref.Name == "" || ref.StudyArea.IsZero()) {
			return core.NewFieldError(field, "disciplines must be an id or an object with a name and a study_area")
		}
	}
	return nil
}

func unmarshalID(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return "", false, nil
	}
	var id string
	err := json.Unmarshal(data, &id)
	return id, true, err
}

type QueryFilter struct {
	StudyArea string `query:"study_area"`
	Search    string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.StudyArea = core.CleanString(qf.StudyArea)
	qf.Search = core.CleanString(qf.Search)
}
