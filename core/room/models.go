package room

import (
	"crypto/rand"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/user"
)

const (
	accessCodeLen   = 8
	accessCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type Room struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	AccessCode    string         `json:"access_code"`
	Owner         user.Summary   `json:"owner"`
	Collaborators []user.Summary `json:"collaborators"`
	Participants  []user.Summary `json:"participants"`
	Exams         []exam.Summary `json:"exams"`
	CreatedAt     time.Time      `json:"created_at"` // UTC
	UpdatedAt     time.Time      `json:"updated_at"` // UTC
}

// NewAccessCode returns a random code participants use to join a Room.
func NewAccessCode() (string, error) {
	buf := make([]byte, accessCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = accessCodeChars[int(b)%len(accessCodeChars)]
	}
	return string(buf), nil
}

// NewRoom contains information needed to create a Room.
type NewRoom struct {
	Title         string   `json:"title" validate:"required,notblank,max=150"`
	Description   string   `json:"description"`
	Collaborators []string `json:"collaborators"`
	Participants  []string `json:"participants"`
	Exams         []string `json:"exams"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Collaborators = core.UniqueStrings(nr.Collaborators)
	nr.Participants = core.UniqueStrings(nr.Participants)
	nr.Exams = core.UniqueStrings(nr.Exams)
	return validate.Struct(nr)
}

// UpdateRoom defines what information may be provided to modify an existing Room.
// Absent fields keep their current value; lists are replaced as a whole.
type UpdateRoom struct {
	Title         *string   `json:"title" validate:"omitempty,notblank,max=150"`
	Description   *string   `json:"description"`
	Collaborators *[]string `json:"collaborators"`
	Participants  *[]string `json:"participants"`
	Exams         *[]string `json:"exams"`
}

func (ur *UpdateRoom) Validate(validate *validator.Validate) error {
	if ur.Title != nil {
		title := core.CleanString(*ur.Title)
		ur.Title = &title
	}
	if ur.Description != nil {
		desc := core.CleanString(*ur.Description)
		ur.Description = &desc
	}
	for _, ids := range []*[]string{ur.Collaborators, ur.Participants, ur.Exams} {
		if ids != nil {
			*ids = core.UniqueStrings(*ids)
		}
	}
	return validate.Struct(ur)
}

type JoinRoom struct {
	AccessCode string `json:"access_code" validate:"required"`
}

func (jr *JoinRoom) Validate(validate *validator.Validate) error {
	jr.AccessCode = core.CleanString(jr.AccessCode)
	return validate.Struct(jr)
}

type QueryFilter struct {
	MemberID string // restricts to rooms owned by, shared with or joined by this User
	Search   string `query:"search"`
}
