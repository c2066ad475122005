package exam

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/access"
	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

// ErrNotFound is returned when an Exam does not exist.
var ErrNotFound = core.NewNotFoundError("exam")

type (
	Repository interface {
		// CreateExam stores e with its questions and collaborators. When e.QuestionBank is set,
		// the questions of that bank are copied into the Exam in the same transaction.
		CreateExam(ctx context.Context, e Exam) (Exam, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		QueryExams(ctx context.Context, filter QueryFilter) ([]Exam, error)
		CountExams(ctx context.Context, filter QueryFilter) (int, error)
		// UpdateExam stores e, replacing its questions and collaborators.
		UpdateExam(ctx context.Context, e Exam) (Exam, error)
		DeleteExam(ctx context.Context, id string) error
		// AddExamQuestions adds questionIDs to the Exam, ignoring the ones already in it.
		AddExamQuestions(ctx context.Context, id string, questionIDs ...string) (Exam, error)
		// AddExamQuestionBank links the Exam to the bank and copies the bank questions into it.
		AddExamQuestionBank(ctx context.Context, id, bankID string) (Exam, error)
	}

	Service struct {
		repo        Repository
		userSvc     *user.Service
		questionSvc *question.Service
		bankSvc     *bank.Service
		mailSvc     core.EmailService
	}
)

func NewService(
	repo Repository,
	userSvc *user.Service,
	questionSvc *question.Service,
	bankSvc *bank.Service,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		repo:        repo,
		userSvc:     userSvc,
		questionSvc: questionSvc,
		bankSvc:     bankSvc,
		mailSvc:     mailSvc,
	}
}

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

// readableBank returns the QuestionBank with id if actor may read it.
func (svc *Service) readableBank(ctx context.Context, actor user.User, id string) (bank.QuestionBank, error) {
	b, err := svc.bankSvc.Retrieve(ctx, actor, id)
	if err != nil {
		if errors.Cause(err) == bank.ErrNotFound {
			return bank.QuestionBank{}, core.NewFieldError("question_bank", bank.ErrNotFound.Error())
		}
		return bank.QuestionBank{}, err
	}
	return b, nil
}

func questionSummaries(ids []string) []question.Summary {
	qs := make([]question.Summary, 0, len(ids))
	for _, id := range ids {
		qs = append(qs, question.Summary{ID: id})
	}
	return qs
}

func (svc *Service) invite(actor user.User, e Exam, invitees []user.Summary) {
	access.Invitation{
		Inviter:  actor,
		Invitees: invitees,
		Role:     "collaborator",
		Kind:     "exam",
		Title:    e.Title,
		Path:     "exams/" + e.ID,
	}.Send(svc.mailSvc)
}

func (svc *Service) Create(ctx context.Context, actor user.User, ne NewExam) (Exam, error) {
	collabs, err := svc.collaborators(ctx, actor.ID, ne.Collaborators)
	if err != nil {
		return Exam{}, err
	}
	if err = svc.questionSvc.CheckIDs(ctx, "questions", ne.Questions); err != nil {
		return Exam{}, err
	}

	now := time.Now().UTC()
	e := Exam{
		Title:         ne.Title,
		Description:   ne.Description,
		Duration:      ne.Duration,
		Questions:     questionSummaries(ne.Questions),
		Owner:         actor.Summary(),
		Collaborators: collabs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if ne.QuestionBank != "" {
		b, err := svc.readableBank(ctx, actor, ne.QuestionBank)
		if err != nil {
			return Exam{}, err
		}
		summary := b.Summary()
		e.QuestionBank = &summary
	}

	e, err = svc.repo.CreateExam(ctx, e)
	if err != nil {
		return Exam{}, errors.Wrap(err, "creating exam")
	}
	svc.invite(actor, e, e.Collaborators)
	return e, nil
}

// Retrieve returns the Exam with id if actor may read it.
func (svc *Service) Retrieve(ctx context.Context, actor user.User, id string) (Exam, error) {
	e, err := svc.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if !access.CanRead(actor, e.Owner.ID, e.Collaborators) {
		return Exam{}, core.ErrPermissionDenied
	}
	return e, nil
}

// Query lists Exams: admins see every Exam, others the ones they own or collaborate on.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) ([]Exam, error) {
	filter.Search = core.CleanString(filter.Search)
	if !actor.IsAdmin {
		filter.MemberID = actor.ID
	}
	return svc.repo.QueryExams(ctx, filter)
}

func (svc *Service) Count(ctx context.Context, actor user.User, filter QueryFilter) (int, error) {
	filter.Search = core.CleanString(filter.Search)
	if !actor.IsAdmin {
		filter.MemberID = actor.ID
	}
	return svc.repo.CountExams(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, actor user.User, e Exam, ue UpdateExam) (Exam, error) {
	if !access.CanWrite(actor, e.Owner.ID, e.Collaborators) {
		return Exam{}, core.ErrPermissionDenied
	}

	prevCollabs := e.Collaborators
	if ue.Collaborators != nil && !access.SameMembers(*ue.Collaborators, e.Collaborators) {
		if !access.CanDelete(actor, e.Owner.ID) {
			return Exam{}, core.ErrPermissionDenied
		}
		collabs, err := svc.collaborators(ctx, e.Owner.ID, *ue.Collaborators)
		if err != nil {
			return Exam{}, err
		}
		e.Collaborators = collabs
	}
	if ue.Questions != nil {
		if err := svc.questionSvc.CheckIDs(ctx, "questions", *ue.Questions); err != nil {
			return Exam{}, err
		}
		e.Questions = questionSummaries(*ue.Questions)
	}
	if ue.Title != nil {
		e.Title = *ue.Title
	}
	if ue.Description != nil {
		e.Description = *ue.Description
	}
	if ue.Duration != nil {
		e.Duration = *ue.Duration
	}
	e.UpdatedAt = time.Now().UTC()

	e, err := svc.repo.UpdateExam(ctx, e)
	if err != nil {
		return Exam{}, errors.Wrap(err, "updating exam")
	}
	svc.invite(actor, e, access.NewMembers(e.Collaborators, prevCollabs))
	return e, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, e Exam) error {
	if !access.CanDelete(actor, e.Owner.ID) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteExam(ctx, e.ID)
}

func (svc *Service) AddQuestions(ctx context.Context, actor user.User, e Exam, aq AddQuestions) (Exam, error) {
	if !access.CanWrite(actor, e.Owner.ID, e.Collaborators) {
		return Exam{}, core.ErrPermissionDenied
	}
	if err := svc.questionSvc.CheckIDs(ctx, "questions", aq.Questions); err != nil {
		return Exam{}, err
	}
	e, err := svc.repo.AddExamQuestions(ctx, e.ID, aq.Questions...)
	return e, errors.Wrap(err, "adding exam questions")
}

func (svc *Service) AddQuestionBank(ctx context.Context, actor user.User, e Exam, ab AddQuestionBank) (Exam, error) {
	if !access.CanWrite(actor, e.Owner.ID, e.Collaborators) {
		return Exam{}, core.ErrPermissionDenied
	}
	b, err := svc.readableBank(ctx, actor, ab.QuestionBank)
	if err != nil {
		return Exam{}, err
	}
	e, err = svc.repo.AddExamQuestionBank(ctx, e.ID, b.ID)
	return e, errors.Wrap(err, "adding exam question bank")
}
