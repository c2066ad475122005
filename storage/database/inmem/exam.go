package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (db *DB) exam(rec *examRecord) exam.Exam {
	e := exam.Exam{
		ID:            rec.ID,
		Title:         rec.Title,
		Description:   rec.Description,
		Duration:      rec.Duration,
		Questions:     db.questionSummaries(rec.QuestionIDs),
		Collaborators: db.userSummaries(rec.CollabIDs),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if b, ok := db.banks[rec.BankID]; ok {
		e.QuestionBank = &bank.Summary{ID: b.ID, Name: b.Name}
	}
	if usr, ok := db.users[rec.OwnerID]; ok {
		e.Owner = usr.Summary()
	}
	return e
}

// copyBankQuestions appends the questions of the bank to the exam, keeping the bank order.
func (db *DB) copyBankQuestions(rec *examRecord, bankID string) error {
	b, ok := db.banks[bankID]
	if !ok {
		return bank.ErrNotFound
	}
	rec.BankID = bankID
	rec.QuestionIDs = appendMissing(rec.QuestionIDs, b.QuestionIDs...)
	return nil
}

func (repo *examRepository) CreateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	qIDs := questionIDs(e.Questions)
	if err := repo.db.checkQuestions(qIDs); err != nil {
		return exam.Exam{}, err
	}
	rec := &examRecord{
		ID:          uuid.NewString(),
		Title:       e.Title,
		Description: e.Description,
		Duration:    e.Duration,
		OwnerID:     e.Owner.ID,
		CollabIDs:   summaryIDs(e.Collaborators),
		QuestionIDs: appendMissing(nil, qIDs...),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.QuestionBank != nil {
		if err := repo.db.copyBankQuestions(rec, e.QuestionBank.ID); err != nil {
			return exam.Exam{}, err
		}
	}
	repo.db.exams[rec.ID] = rec
	return repo.db.exam(rec), nil
}

func (repo *examRepository) GetExam(_ context.Context, id string) (exam.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.exams[id]; ok {
		return repo.db.exam(rec), nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func matchExam(rec *examRecord, filter exam.QueryFilter) bool {
	if filter.MemberID != "" && rec.OwnerID != filter.MemberID && !contains(rec.CollabIDs, filter.MemberID) {
		return false
	}
	if filter.Search != "" && !containsFold(rec.Title, filter.Search) {
		return false
	}
	return true
}

func (repo *examRepository) QueryExams(_ context.Context, filter exam.QueryFilter) ([]exam.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exams := make([]exam.Exam, 0)
	for _, rec := range repo.db.exams {
		if !matchExam(rec, filter) {
			continue
		}
		exams = append(exams, repo.db.exam(rec))
	}
	sort.Slice(exams, func(i, j int) bool {
		if !exams[i].CreatedAt.Equal(exams[j].CreatedAt) {
			return exams[i].CreatedAt.After(exams[j].CreatedAt)
		}
		return exams[i].ID < exams[j].ID
	})
	return exams, nil
}

func (repo *examRepository) CountExams(_ context.Context, filter exam.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	n := 0
	for _, rec := range repo.db.exams {
		if matchExam(rec, filter) {
			n++
		}
	}
	return n, nil
}

func (repo *examRepository) UpdateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.exams[e.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	qIDs := questionIDs(e.Questions)
	if err := repo.db.checkQuestions(qIDs); err != nil {
		return exam.Exam{}, err
	}
	rec.Title = e.Title
	rec.Description = e.Description
	rec.Duration = e.Duration
	rec.CollabIDs = summaryIDs(e.Collaborators)
	rec.QuestionIDs = appendMissing(nil, qIDs...)
	rec.UpdatedAt = e.UpdatedAt
	return repo.db.exam(rec), nil
}

func (repo *examRepository) DeleteExam(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.exams[id]; !ok {
		return exam.ErrNotFound
	}
	repo.db.deleteExam(id)
	return nil
}

func (repo *examRepository) AddExamQuestions(_ context.Context, id string, questionIDs ...string) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.exams[id]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	if err := repo.db.checkQuestions(questionIDs); err != nil {
		return exam.Exam{}, err
	}
	rec.QuestionIDs = appendMissing(rec.QuestionIDs, questionIDs...)
	rec.UpdatedAt = now()
	return repo.db.exam(rec), nil
}

func (repo *examRepository) AddExamQuestionBank(_ context.Context, id, bankID string) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.exams[id]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	if err := repo.db.copyBankQuestions(rec, bankID); err != nil {
		return exam.Exam{}, err
	}
	rec.UpdatedAt = now()
	return repo.db.exam(rec), nil
}
