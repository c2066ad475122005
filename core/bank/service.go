package bank

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/access"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("question bank")
	ErrNameExists = errors.New("a question bank with this name already exists")
)

type (
	Repository interface {
		// CheckNameUniqueness returns ErrNameExists when a QuestionBank other than excludedID is named name.
		CheckNameUniqueness(ctx context.Context, name, excludedID string) error
		// CreateQuestionBank stores b with its collaborators and questions, resolving refs into its
		// disciplines, atomically.
		CreateQuestionBank(ctx context.Context, b QuestionBank, refs []discipline.Ref) (QuestionBank, error)
		GetQuestionBank(ctx context.Context, id string) (QuestionBank, error)
		QueryQuestionBanks(ctx context.Context, filter QueryFilter) ([]QuestionBank, error)
		CountQuestionBanks(ctx context.Context, filter QueryFilter) (int, error)
		// UpdateQuestionBank stores b, replacing its collaborators and questions.
		// Disciplines are replaced when refs is not nil.
		UpdateQuestionBank(ctx context.Context, b QuestionBank, refs []discipline.Ref) (QuestionBank, error)
		DeleteQuestionBank(ctx context.Context, id string) error
	}

	Service struct {
		repo          Repository
		userSvc       *user.Service
		disciplineSvc *discipline.Service
		questionSvc   *question.Service
		mailSvc       core.EmailService
	}
)

func NewService(
	repo Repository,
	userSvc *user.Service,
	disciplineSvc *discipline.Service,
	questionSvc *question.Service,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		repo:          repo,
		userSvc:       userSvc,
		disciplineSvc: disciplineSvc,
		questionSvc:   questionSvc,
		mailSvc:       mailSvc,
	}
}

func nameError(err error) error {
	if errors.Cause(err) == ErrNameExists {
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	return err
}

// collaborators resolves ids into User summaries, leaving the owner out.
func (svc *Service) collaborators(ctx context.Context, ownerID string, ids []string) ([]user.Summary, error) {
	summaries, err := svc.userSvc.Summaries(ctx, "collaborators", ids)
	if err != nil {
		return nil, err
	}
	collabs := make([]user.Summary, 0, len(summaries))
	for _, s := range summaries {
		if s.ID != ownerID {
			collabs = append(collabs, s)
		}
	}
	return collabs, nil
}

func questionSummaries(ids []string) []question.Summary {
	qs := make([]question.Summary, 0, len(ids))
	for _, id := range ids {
		qs = append(qs, question.Summary{ID: id})
	}
	return qs
}

func (svc *Service) hydrate(ctx context.Context, b QuestionBank) (QuestionBank, error) {
	qs, err := svc.questionSvc.GetMany(ctx, b.QuestionIDs())
	if err != nil {
		return QuestionBank{}, errors.Wrap(err, "getting bank questions")
	}
	b.PredominantDisciplines = PredominantDisciplines(qs)
	return b, nil
}

func (svc *Service) invite(actor user.User, b QuestionBank, invitees []user.Summary) {
	access.Invitation{
		Inviter:  actor,
		Invitees: invitees,
		Role:     "collaborator",
		Kind:     "question bank",
		Title:    b.Name,
		Path:     "question-banks/" + b.ID,
	}.Send(svc.mailSvc)
}

func (svc *Service) Create(ctx context.Context, actor user.User, nb NewQuestionBank) (QuestionBank, error) {
	if err := nameError(svc.repo.CheckNameUniqueness(ctx, nb.Name, "")); err != nil {
		return QuestionBank{}, err
	}
	collabs, err := svc.collaborators(ctx, actor.ID, nb.Collaborators)
	if err != nil {
		return QuestionBank{}, err
	}
	if err = svc.disciplineSvc.CheckRefs(ctx, "disciplines", nb.Disciplines); err != nil {
		return QuestionBank{}, err
	}
	if err = svc.questionSvc.CheckIDs(ctx, "questions", nb.Questions); err != nil {
		return QuestionBank{}, err
	}

	now := time.Now().UTC()
	b, err := svc.repo.CreateQuestionBank(ctx, QuestionBank{
		Name:          nb.Name,
		Description:   nb.Description,
		Owner:         actor.Summary(),
		Collaborators: collabs,
		Questions:     questionSummaries(nb.Questions),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nb.Disciplines)
	if err != nil {
		return QuestionBank{}, nameError(discipline.RefError("disciplines", err))
	}
	svc.invite(actor, b, b.Collaborators)
	return svc.hydrate(ctx, b)
}

// Retrieve returns the QuestionBank with id if actor may read it.
func (svc *Service) Retrieve(ctx context.Context, actor user.User, id string) (QuestionBank, error) {
	b, err := svc.repo.GetQuestionBank(ctx, id)
	if err != nil {
		return QuestionBank{}, err
	}
	if !access.CanRead(actor, b.Owner.ID, b.Collaborators) {
		return QuestionBank{}, core.ErrPermissionDenied
	}
	return svc.hydrate(ctx, b)
}

// Query lists QuestionBanks: admins see every bank, others the ones they own or collaborate on.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) ([]QuestionBank, error) {
	filter.Search = core.CleanString(filter.Search)
	if !actor.IsAdmin {
		filter.MemberID = actor.ID
	}
	banks, err := svc.repo.QueryQuestionBanks(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range banks {
		if banks[i], err = svc.hydrate(ctx, banks[i]); err != nil {
			return nil, err
		}
	}
	return banks, nil
}

func (svc *Service) Count(ctx context.Context, actor user.User, filter QueryFilter) (int, error) {
	filter.Search = core.CleanString(filter.Search)
	if !actor.IsAdmin {
		filter.MemberID = actor.ID
	}
	return svc.repo.CountQuestionBanks(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, actor user.User, b QuestionBank, ub UpdateQuestionBank) (QuestionBank, error) {
	if !access.CanWrite(actor, b.Owner.ID, b.Collaborators) {
		return QuestionBank{}, core.ErrPermissionDenied
	}

	prevCollabs := b.Collaborators
	if ub.Collaborators != nil && !access.SameMembers(*ub.Collaborators, b.Collaborators) {
		if !access.CanDelete(actor, b.Owner.ID) {
			return QuestionBank{}, core.ErrPermissionDenied
		}
		collabs, err := svc.collaborators(ctx, b.Owner.ID, *ub.Collaborators)
		if err != nil {
			return QuestionBank{}, err
		}
		b.Collaborators = collabs
	}
	if ub.Name != nil && *ub.Name != b.Name {
		if err := nameError(svc.repo.CheckNameUniqueness(ctx, *ub.Name, b.ID)); err != nil {
			return QuestionBank{}, err
		}
		b.Name = *ub.Name
	}
	if ub.Description != nil {
		b.Description = *ub.Description
	}

	var refs []discipline.Ref
	if ub.Disciplines != nil {
		refs = append([]discipline.Ref{}, *ub.Disciplines...)
		if err := svc.disciplineSvc.CheckRefs(ctx, "disciplines", refs); err != nil {
			return QuestionBank{}, err
		}
	}
	if ub.Questions != nil {
		if err := svc.questionSvc.CheckIDs(ctx, "questions", *ub.Questions); err != nil {
			return QuestionBank{}, err
		}
		b.Questions = questionSummaries(*ub.Questions)
	}
	b.UpdatedAt = time.Now().UTC()

	b, err := svc.repo.UpdateQuestionBank(ctx, b, refs)
	if err != nil {
		return QuestionBank{}, nameError(discipline.RefError("disciplines", err))
	}
	svc.invite(actor, b, access.NewMembers(b.Collaborators, prevCollabs))
	return svc.hydrate(ctx, b)
}

func (svc *Service) Delete(ctx context.Context, actor user.User, b QuestionBank) error {
	if !access.CanDelete(actor, b.Owner.ID) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteQuestionBank(ctx, b.ID)
}
