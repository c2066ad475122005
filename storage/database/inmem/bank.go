package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/question"
)

type bankRepository struct {
	db *DB
}

var _ bank.Repository = (*bankRepository)(nil) // interface compliance check

func NewBankRepository(db *DB) bank.Repository {
	return &bankRepository{db: db}
}

func (db *DB) bank(rec *bankRecord) bank.QuestionBank {
	b := bank.QuestionBank{
		ID:            rec.ID,
		Name:          rec.Name,
		Description:   rec.Description,
		Collaborators: db.userSummaries(rec.CollabIDs),
		Disciplines:   db.disciplinesByID(rec.DisciplineIDs),
		Questions:     db.questionSummaries(rec.QuestionIDs),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if usr, ok := db.users[rec.OwnerID]; ok {
		b.Owner = usr.Summary()
	}
	return b
}

func (db *DB) bankNameTaken(name, excludedID string) bool {
	for _, b := range db.banks {
		if b.ID != excludedID && strings.EqualFold(b.Name, name) {
			return true
		}
	}
	return false
}

func questionIDs(qs []question.Summary) []string {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids
}

// checkQuestions fails with question.ErrNotFound when one of ids is unknown.
func (db *DB) checkQuestions(ids []string) error {
	for _, id := range ids {
		if _, ok := db.questions[id]; !ok {
			return question.ErrNotFound
		}
	}
	return nil
}

func (repo *bankRepository) CheckNameUniqueness(_ context.Context, name, excludedID string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.db.bankNameTaken(name, excludedID) {
		return bank.ErrNameExists
	}
	return nil
}

func (repo *bankRepository) CreateQuestionBank(_ context.Context, b bank.QuestionBank, refs []discipline.Ref) (bank.QuestionBank, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.db.bankNameTaken(b.Name, "") {
		return bank.QuestionBank{}, bank.ErrNameExists
	}
	qIDs := questionIDs(b.Questions)
	if err := repo.db.checkQuestions(qIDs); err != nil {
		return bank.QuestionBank{}, err
	}
	disciplineIDs, err := repo.db.resolveDisciplines(refs)
	if err != nil {
		return bank.QuestionBank{}, err
	}
	rec := &bankRecord{
		ID:            uuid.NewString(),
		Name:          b.Name,
		Description:   b.Description,
		OwnerID:       b.Owner.ID,
		CollabIDs:     summaryIDs(b.Collaborators),
		DisciplineIDs: disciplineIDs,
		QuestionIDs:   qIDs,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	repo.db.banks[rec.ID] = rec
	return repo.db.bank(rec), nil
}

func (repo *bankRepository) GetQuestionBank(_ context.Context, id string) (bank.QuestionBank, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.banks[id]; ok {
		return repo.db.bank(rec), nil
	}
	return bank.QuestionBank{}, bank.ErrNotFound
}

func matchBank(rec *bankRecord, filter bank.QueryFilter) bool {
	if filter.MemberID != "" && rec.OwnerID != filter.MemberID && !contains(rec.CollabIDs, filter.MemberID) {
		return false
	}
	if filter.Search != "" && !containsFold(rec.Name, filter.Search) {
		return false
	}
	return true
}

func (repo *bankRepository) QueryQuestionBanks(_ context.Context, filter bank.QueryFilter) ([]bank.QuestionBank, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	banks := make([]bank.QuestionBank, 0)
	for _, rec := range repo.db.banks {
		if !matchBank(rec, filter) {
			continue
		}
		banks = append(banks, repo.db.bank(rec))
	}
	sort.Slice(banks, func(i, j int) bool {
		if !banks[i].CreatedAt.Equal(banks[j].CreatedAt) {
			return banks[i].CreatedAt.After(banks[j].CreatedAt)
		}
		return banks[i].ID < banks[j].ID
	})
	return banks, nil
}

func (repo *bankRepository) CountQuestionBanks(_ context.Context, filter bank.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	n := 0
	for _, rec := range repo.db.banks {
		if matchBank(rec, filter) {
			n++
		}
	}
	return n, nil
}

func (repo *bankRepository) UpdateQuestionBank(_ context.Context, b bank.QuestionBank, refs []discipline.Ref) (bank.QuestionBank, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.banks[b.ID]
	if !ok {
		return bank.QuestionBank{}, bank.ErrNotFound
	}
	if repo.db.bankNameTaken(b.Name, b.ID) {
		return bank.QuestionBank{}, bank.ErrNameExists
	}
	qIDs := questionIDs(b.Questions)
	if err := repo.db.checkQuestions(qIDs); err != nil {
		return bank.QuestionBank{}, err
	}
	disciplineIDs := rec.DisciplineIDs
	if refs != nil {
		var err error
		if disciplineIDs, err = repo.db.resolveDisciplines(refs); err != nil {
			return bank.QuestionBank{}, err
		}
	}
	rec.Name = b.Name
	rec.Description = b.Description
	rec.CollabIDs = summaryIDs(b.Collaborators)
	rec.DisciplineIDs = disciplineIDs
	rec.QuestionIDs = qIDs
	rec.UpdatedAt = b.UpdatedAt
	return repo.db.bank(rec), nil
}

func (repo *bankRepository) DeleteQuestionBank(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.banks[id]; !ok {
		return bank.ErrNotFound
	}
	repo.db.deleteBank(id)
	return nil
}
