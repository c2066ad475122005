// Package stats reports totals of the resources visible to a User.
package stats

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/room"
	"github.com/trezcool/sistira/core/user"
)

type Counts struct {
	Questions     int `json:"questions"`
	QuestionBanks int `json:"question_banks"`
	Exams         int `json:"exams"`
	Rooms         int `json:"rooms"`
}

type Service struct {
	questionSvc *question.Service
	bankSvc     *bank.Service
	examSvc     *exam.Service
	roomSvc     *room.Service
}

func NewService(questionSvc *question.Service, bankSvc *bank.Service, examSvc *exam.Service, roomSvc *room.Service) *Service {
	return &Service{
		questionSvc: questionSvc,
		bankSvc:     bankSvc,
		examSvc:     examSvc,
		roomSvc:     roomSvc,
	}
}

// Counts returns the number of resources actor can list.
func (svc *Service) Counts(ctx context.Context, actor user.User) (Counts, error) {
	var (
		counts Counts
		err    error
	)
	if counts.Questions, err = svc.questionSvc.Count(ctx, actor, question.QueryFilter{}); err != nil {
		return Counts{}, errors.Wrap(err, "counting questions")
	}
	if counts.QuestionBanks, err = svc.bankSvc.Count(ctx, actor, bank.QueryFilter{}); err != nil {
		return Counts{}, errors.Wrap(err, "counting question banks")
	}
	if counts.Exams, err = svc.examSvc.Count(ctx, actor, exam.QueryFilter{}); err != nil {
		return Counts{}, errors.Wrap(err, "counting exams")
	}
	if counts.Rooms, err = svc.roomSvc.Count(ctx, actor, room.QueryFilter{}); err != nil {
		return Counts{}, errors.Wrap(err, "counting rooms")
	}
	return counts, nil
}
