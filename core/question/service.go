package question

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/access"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/user"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("question")
	ErrAlternativeNotFound  = core.NewNotFoundError("alternative")
	ErrLastAlternative      = errors.New(errNoAlternatives)
	ErrNoCorrectAlternative = errors.New(errNoCorrectAlt)
	ErrNotObjective         = errors.New(errNotObjective)
)

type (
	Repository interface {
		// CreateQuestion stores q with its statement and alternatives, resolving refs into its
		// disciplines, atomically.
		CreateQuestion(ctx context.Context, q Question, refs []discipline.Ref) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		// QueryQuestions applies AND operation on available QueryFilter fields.
		QueryQuestions(ctx context.Context, filter QueryFilter) ([]Question, error)
		CountQuestions(ctx context.Context, filter QueryFilter) (int, error)
		// UpdateQuestion stores q. Disciplines are replaced when refs is not nil and
		// alternatives are replaced by q.Alternatives when replaceAlternatives is true.
		UpdateQuestion(ctx context.Context, q Question, refs []discipline.Ref, replaceAlternatives bool) (Question, error)
		DeleteQuestion(ctx context.Context, id string) error

		// CreateAlternative appends alt after the alternatives of its Question. It fails with
		// ErrNotObjective when the Question is not objective at write time.
		CreateAlternative(ctx context.Context, alt Alternative) (Alternative, error)
		GetAlternative(ctx context.Context, id string) (Alternative, error)
		QueryAlternatives(ctx context.Context, filter AlternativeFilter) ([]Alternative, error)
		// UpdateAlternative fails with ErrNoCorrectAlternative when no alternative of the Question
		// would remain correct.
		UpdateAlternative(ctx context.Context, alt Alternative) (Alternative, error)
		// DeleteAlternative fails with ErrLastAlternative or ErrNoCorrectAlternative when the
		// Question would be left without alternatives or without a correct one.
		DeleteAlternative(ctx context.Context, id string) error
	}

	Service struct {
		repo          Repository
		disciplineSvc *discipline.Service
	}
)

func NewService(repo Repository, disciplineSvc *discipline.Service) *Service {
	return &Service{repo: repo, disciplineSvc: disciplineSvc}
}

// alternativesError maps repository alternative errors to validation errors.
func alternativesError(err error) error {
	switch cause := errors.Cause(err); cause {
	case ErrLastAlternative, ErrNoCorrectAlternative:
		return core.NewValidationError(cause)
	}
	return err
}

func (svc *Service) Create(ctx context.Context, actor user.User, nq NewQuestion) (Question, error) {
	if err := svc.disciplineSvc.CheckRefs(ctx, "disciplines", nq.Disciplines); err != nil {
		return Question{}, err
	}

	now := time.Now().UTC()
	q := Question{
		Type:           nq.Type,
		Statement:      Statement{Text: nq.Statement.Text, Image: nq.Statement.Image},
		Alternatives:   newAlternatives(nq.Alternatives),
		EducationLevel: nq.EducationLevel,
		Difficulty:     nq.Difficulty,
		ExamReference:  nq.ExamReference,
		Creator:        actor.Summary(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	q, err := svc.repo.CreateQuestion(ctx, q, nq.Disciplines)
	if err != nil {
		return Question{}, discipline.RefError("disciplines", err)
	}
	return q, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Question, error) {
	return svc.repo.GetQuestion(ctx, id)
}

// Query lists Questions: admins see every Question, others the ones they created.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) ([]Question, error) {
	filter.Clean()
	if !actor.IsAdmin {
		filter.CreatorID = actor.ID
	}
	return svc.repo.QueryQuestions(ctx, filter)
}

// Count returns how many results Query would list for actor.
func (svc *Service) Count(ctx context.Context, actor user.User, filter QueryFilter) (int, error) {
	filter.Clean()
	if !actor.IsAdmin {
		filter.CreatorID = actor.ID
	}
	return svc.repo.CountQuestions(ctx, filter)
}

// GetMany returns the Questions with ids, regardless of who created them.
func (svc *Service) GetMany(ctx context.Context, ids []string) ([]Question, error) {
	if len(ids) == 0 {
		return []Question{}, nil
	}
	return svc.repo.QueryQuestions(ctx, QueryFilter{IDs: ids})
}

// CheckIDs checks that every id points to an existing Question.
func (svc *Service) CheckIDs(ctx context.Context, field string, ids []string) error {
	for _, id := range ids {
		if _, err := svc.repo.GetQuestion(ctx, id); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return core.NewFieldError(field, "question \""+id+"\" not found")
			}
			return errors.Wrap(err, "finding question by ID")
		}
	}
	return nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, q Question, uq UpdateQuestion) (Question, error) {
	if !access.CanDelete(actor, q.Creator.ID) {
		return Question{}, core.ErrPermissionDenied
	}

	var refs []discipline.Ref
	if uq.Disciplines != nil {
		refs = *uq.Disciplines
		if refs == nil {
			refs = []discipline.Ref{}
		}
		if err := svc.disciplineSvc.CheckRefs(ctx, "disciplines", refs); err != nil {
			return Question{}, err
		}
	}

	if uq.Type != nil {
		q.Type = *uq.Type
	}
	if uq.Statement != nil {
		q.Statement.Text = uq.Statement.Text
		q.Statement.Image = uq.Statement.Image
	}
	if uq.EducationLevel != nil {
		q.EducationLevel = *uq.EducationLevel
	}
	if uq.Difficulty != nil {
		q.Difficulty = *uq.Difficulty
	}
	if uq.ExamReference != nil {
		q.ExamReference = *uq.ExamReference
	}

	var replaceAlts bool
	switch {
	case uq.Alternatives != nil:
		replaceAlts = true
		q.Alternatives = newAlternatives(*uq.Alternatives)
	case q.Type == Subjective && len(q.Alternatives) > 0:
		replaceAlts = true
		q.Alternatives = []Alternative{}
	}
	q.UpdatedAt = time.Now().UTC()

	q, err := svc.repo.UpdateQuestion(ctx, q, refs, replaceAlts)
	if err != nil {
		return Question{}, discipline.RefError("disciplines", err)
	}
	return q, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, q Question) error {
	if !access.CanDelete(actor, q.Creator.ID) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteQuestion(ctx, q.ID)
}

// Alternatives

func (svc *Service) CreateAlternative(ctx context.Context, actor user.User, nar NewAlternativeRequest) (Alternative, error) {
	q, err := svc.repo.GetQuestion(ctx, nar.Question)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Alternative{}, core.NewFieldError("question", ErrNotFound.Error())
		}
		return Alternative{}, errors.Wrap(err, "finding question by ID")
	}
	if !access.CanDelete(actor, q.Creator.ID) {
		return Alternative{}, core.ErrPermissionDenied
	}
	if q.Type != Objective {
		return Alternative{}, core.NewFieldError("question", errNotObjective)
	}

	alt, err := svc.repo.CreateAlternative(ctx, Alternative{
		QuestionID: q.ID,
		Content:    nar.Content,
		Correct:    nar.Correct,
	})
	if err != nil {
		switch errors.Cause(err) {
		case ErrNotObjective:
			return Alternative{}, core.NewFieldError("question", errNotObjective)
		case ErrNotFound:
			return Alternative{}, core.NewFieldError("question", ErrNotFound.Error())
		}
		return Alternative{}, errors.Wrap(err, "creating alternative")
	}
	return alt, nil
}

func (svc *Service) GetAlternative(ctx context.Context, id string) (Alternative, error) {
	return svc.repo.GetAlternative(ctx, id)
}

// QueryAlternatives lists Alternatives: admins see every Alternative, others the ones of
// Questions they created.
func (svc *Service) QueryAlternatives(ctx context.Context, actor user.User, filter AlternativeFilter) ([]Alternative, error) {
	filter.Question = core.CleanString(filter.Question)
	if !actor.IsAdmin {
		filter.CreatorID = actor.ID
	}
	return svc.repo.QueryAlternatives(ctx, filter)
}

// AlternativeQuestion returns the Question alt belongs to.
func (svc *Service) AlternativeQuestion(ctx context.Context, alt Alternative) (Question, error) {
	q, err := svc.repo.GetQuestion(ctx, alt.QuestionID)
	return q, errors.Wrap(err, "finding question by ID")
}

func (svc *Service) UpdateAlternative(ctx context.Context, actor user.User, alt Alternative, ua UpdateAlternative) (Alternative, error) {
	q, err := svc.AlternativeQuestion(ctx, alt)
	if err != nil {
		return Alternative{}, err
	}
	if !access.CanDelete(actor, q.Creator.ID) {
		return Alternative{}, core.ErrPermissionDenied
	}
	if ua.Content != nil {
		alt.Content = *ua.Content
	}
	if ua.Correct != nil {
		alt.Correct = *ua.Correct
	}
	alt, err = svc.repo.UpdateAlternative(ctx, alt)
	return alt, alternativesError(err)
}

func (svc *Service) DeleteAlternative(ctx context.Context, actor user.User, alt Alternative) error {
	q, err := svc.AlternativeQuestion(ctx, alt)
	if err != nil {
		return err
	}
	if !access.CanDelete(actor, q.Creator.ID) {
		return core.ErrPermissionDenied
	}
	return alternativesError(svc.repo.DeleteAlternative(ctx, alt.ID))
}
