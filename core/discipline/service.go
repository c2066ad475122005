package discipline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/access"
	"github.com/trezcool/sistira/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("discipline")
	ErrStudyAreaNotFound = core.NewNotFoundError("study area")
	ErrStudyAreaExists   = errors.New("a study area with this name already exists")
	ErrDisciplineExists  = errors.New("a discipline with this name already exists in this study area")
)

type (
	Repository interface {
		CreateStudyArea(ctx context.Context, sa StudyArea) (StudyArea, error)
		GetStudyArea(ctx context.Context, id string) (StudyArea, error)
		// QueryStudyAreas does a case-insensitive match of search on StudyArea.Name.
		QueryStudyAreas(ctx context.Context, search string) ([]StudyArea, error)
		UpdateStudyArea(ctx context.Context, sa StudyArea) (StudyArea, error)
		// DeleteStudyArea also deletes the disciplines of the StudyArea.
		DeleteStudyArea(ctx context.Context, id string) error

		// CreateDiscipline resolves area (get or create) and creates d in it, atomically.
		CreateDiscipline(ctx context.Context, d Discipline, area StudyAreaRef) (Discipline, error)
		GetDiscipline(ctx context.Context, id string) (Discipline, error)
		QueryDisciplines(ctx context.Context, filter QueryFilter) ([]Discipline, error)
		// UpdateDiscipline moves d to area when it is not nil.
		UpdateDiscipline(ctx context.Context, d Discipline, area *StudyAreaRef) (Discipline, error)
		DeleteDiscipline(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// conflictError maps repository uniqueness errors to a validation error on the name field.
func conflictError(err error) error {
	switch cause := errors.Cause(err); cause {
	case ErrStudyAreaExists, ErrDisciplineExists:
		return core.NewValidationError(cause, core.FieldError{Field: "name", Error: cause.Error()})
	}
	return err
}

// RefError converts the errors raised while resolving refs into a validation error on field.
func RefError(field string, err error) error {
	switch cause := errors.Cause(err); cause {
	case ErrNotFound, ErrStudyAreaNotFound:
		return core.NewFieldError(field, cause.Error())
	}
	return err
}

// Study areas

func (svc *Service) CreateStudyArea(ctx context.Context, nsa NewStudyArea) (StudyArea, error) {
	sa, err := svc.repo.CreateStudyArea(ctx, StudyArea{
		Name:        nsa.Name,
		Description: nsa.Description,
		CreatedAt:   time.Now().UTC(),
	})
	return sa, conflictError(err)
}

func (svc *Service) GetStudyArea(ctx context.Context, id string) (StudyArea, error) {
	return svc.repo.GetStudyArea(ctx, id)
}

func (svc *Service) QueryStudyAreas(ctx context.Context, search string) ([]StudyArea, error) {
	return svc.repo.QueryStudyAreas(ctx, core.CleanString(search))
}

func (svc *Service) UpdateStudyArea(ctx context.Context, actor user.User, sa StudyArea, usa UpdateStudyArea) (StudyArea, error) {
	if !access.CanManageReferenceData(actor) {
		return StudyArea{}, core.ErrPermissionDenied
	}
	if usa.Name != nil {
		sa.Name = *usa.Name
	}
	if usa.Description != nil {
		sa.Description = core.CleanString(*usa.Description)
	}
	sa, err := svc.repo.UpdateStudyArea(ctx, sa)
	return sa, conflictError(err)
}

func (svc *Service) DeleteStudyArea(ctx context.Context, actor user.User, sa StudyArea) error {
	if !access.CanManageReferenceData(actor) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteStudyArea(ctx, sa.ID)
}

// Disciplines

func (svc *Service) checkStudyAreaRef(ctx context.Context, field string, ref StudyAreaRef) error {
	if ref.ID == "" {
		return nil
	}
	if _, err := svc.repo.GetStudyArea(ctx, ref.ID); err != nil {
		if errors.Cause(err) == ErrStudyAreaNotFound {
			return core.NewFieldError(field, ErrStudyAreaNotFound.Error())
		}
		return errors.Wrap(err, "finding study area by ID")
	}
	return nil
}

// CheckRefs checks that every ref by ID points to an existing Discipline or StudyArea.
// Inline refs are resolved when the referencing resource is written.
func (svc *Service) CheckRefs(ctx context.Context, field string, refs []Ref) error {
	if err := CleanRefs(field, refs); err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.ID != "" {
			if _, err := svc.repo.GetDiscipline(ctx, ref.ID); err != nil {
				if errors.Cause(err) == ErrNotFound {
					return core.NewFieldError(field, ErrNotFound.Error())
				}
				return errors.Wrap(err, "finding discipline by ID")
			}
			continue
		}
		if err := svc.checkStudyAreaRef(ctx, field, ref.StudyArea); err != nil {
			return err
		}
	}
	return nil
}

func (svc *Service) CreateDiscipline(ctx context.Context, nd NewDiscipline) (Discipline, error) {
	if err := svc.checkStudyAreaRef(ctx, "study_area", nd.StudyArea); err != nil {
		return Discipline{}, err
	}
	d, err := svc.repo.CreateDiscipline(ctx, Discipline{
		Name:        nd.Name,
		Description: nd.Description,
		CreatedAt:   time.Now().UTC(),
	}, nd.StudyArea)
	if err != nil {
		return Discipline{}, conflictError(RefError("study_area", err))
	}
	return d, nil
}

func (svc *Service) GetDiscipline(ctx context.Context, id string) (Discipline, error) {
	return svc.repo.GetDiscipline(ctx, id)
}

func (svc *Service) QueryDisciplines(ctx context.Context, filter QueryFilter) ([]Discipline, error) {
	filter.Clean()
	return svc.repo.QueryDisciplines(ctx, filter)
}

func (svc *Service) UpdateDiscipline(ctx context.Context, actor user.User, d Discipline, ud UpdateDiscipline) (Discipline, error) {
	if !access.CanManageReferenceData(actor) {
		return Discipline{}, core.ErrPermissionDenied
	}
	if ud.StudyArea != nil {
		if err := svc.checkStudyAreaRef(ctx, "study_area", *ud.StudyArea); err != nil {
			return Discipline{}, err
		}
	}
	if ud.Name != nil {
		d.Name = *ud.Name
	}
	if ud.Description != nil {
		d.Description = core.CleanString(*ud.Description)
	}
	d, err := svc.repo.UpdateDiscipline(ctx, d, ud.StudyArea)
	if err != nil {
		return Discipline{}, conflictError(RefError("study_area", err))
	}
	return d, nil
}

func (svc *Service) DeleteDiscipline(ctx context.Context, actor user.User, d Discipline) error {
	if !access.CanManageReferenceData(actor) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteDiscipline(ctx, d.ID)
}
