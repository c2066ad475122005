package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/question"
)

type questionRepository struct {
	db *DB
}

var _ question.Repository = (*questionRepository)(nil) // interface compliance check

func NewQuestionRepository(db *DB) question.Repository {
	return &questionRepository{db: db}
}

func (db *DB) alternativesOf(qID string) []question.Alternative {
	alts := make([]question.Alternative, 0)
	for _, alt := range db.alternatives {
		if alt.QuestionID == qID {
			alts = append(alts, *alt)
		}
	}
	sort.Slice(alts, func(i, j int) bool {
		if alts[i].Position != alts[j].Position {
			return alts[i].Position < alts[j].Position
		}
		return alts[i].ID < alts[j].ID
	})
	return alts
}

func (db *DB) question(rec *questionRecord) question.Question {
	q := rec.Question
	if usr, ok := db.users[rec.CreatorID]; ok {
		q.Creator = usr.Summary()
	}
	q.Disciplines = db.disciplinesByID(rec.DisciplineIDs)
	q.Alternatives = db.alternativesOf(rec.ID)
	q.QuestionBanks = make([]string, 0)
	for _, b := range db.banks {
		if contains(b.QuestionIDs, rec.ID) {
			q.QuestionBanks = append(q.QuestionBanks, b.ID)
		}
	}
	sort.Strings(q.QuestionBanks)
	return q
}

func (db *DB) setAlternatives(qID string, alts []question.Alternative) {
	for id, alt := range db.alternatives {
		if alt.QuestionID == qID {
			delete(db.alternatives, id)
		}
	}
	for _, alt := range alts {
		alt := alt
		alt.ID = uuid.NewString()
		alt.QuestionID = qID
		db.alternatives[alt.ID] = &alt
	}
}

func (repo *questionRepository) CreateQuestion(_ context.Context, q question.Question, refs []discipline.Ref) (question.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	disciplineIDs, err := repo.db.resolveDisciplines(refs)
	if err != nil {
		return question.Question{}, err
	}
	q.ID = uuid.NewString()
	rec := &questionRecord{Question: q, CreatorID: q.Creator.ID, DisciplineIDs: disciplineIDs}
	rec.Alternatives = nil
	repo.db.questions[q.ID] = rec
	repo.db.setAlternatives(q.ID, q.Alternatives)
	return repo.db.question(rec), nil
}

func (repo *questionRepository) GetQuestion(_ context.Context, id string) (question.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.questions[id]; ok {
		return repo.db.question(rec), nil
	}
	return question.Question{}, question.ErrNotFound
}

func matchQuestion(rec *questionRecord, filter question.QueryFilter) bool {
	if filter.IDs != nil && !contains(filter.IDs, rec.ID) {
		return false
	}
	if filter.CreatorID != "" && rec.CreatorID != filter.CreatorID {
		return false
	}
	if filter.Type != "" && string(rec.Type) != filter.Type {
		return false
	}
	if filter.Discipline != "" && !contains(rec.DisciplineIDs, filter.Discipline) {
		return false
	}
	if filter.Search != "" && !containsFold(rec.Statement.Text, filter.Search) {
		return false
	}
	return true
}

func (repo *questionRepository) QueryQuestions(_ context.Context, filter question.QueryFilter) ([]question.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	qs := make([]question.Question, 0)
	for _, rec := range repo.db.questions {
		if !matchQuestion(rec, filter) {
			continue
		}
		qs = append(qs, repo.db.question(rec))
	}
	sort.Slice(qs, func(i, j int) bool {
		if !qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].CreatedAt.After(qs[j].CreatedAt)
		}
		return qs[i].ID < qs[j].ID
	})
	return qs, nil
}

func (repo *questionRepository) CountQuestions(_ context.Context, filter question.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	n := 0
	for _, rec := range repo.db.questions {
		if matchQuestion(rec, filter) {
			n++
		}
	}
	return n, nil
}

func (repo *questionRepository) UpdateQuestion(_ context.Context, q question.Question, refs []discipline.Ref, replaceAlternatives bool) (question.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.questions[q.ID]
	if !ok {
		return question.Question{}, question.ErrNotFound
	}
	disciplineIDs := rec.DisciplineIDs
	if refs != nil {
		var err error
		if disciplineIDs, err = repo.db.resolveDisciplines(refs); err != nil {
			return question.Question{}, err
		}
	}

	alts := q.Alternatives
	q.Alternatives = nil
	q.CreatedAt = rec.CreatedAt
	rec.Question = q
	rec.DisciplineIDs = disciplineIDs
	if replaceAlternatives {
		repo.db.setAlternatives(q.ID, alts)
	}
	return repo.db.question(rec), nil
}

func (repo *questionRepository) DeleteQuestion(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.questions[id]; !ok {
		return question.ErrNotFound
	}
	repo.db.deleteQuestion(id)
	return nil
}

// Alternatives

func (repo *questionRepository) CreateAlternative(_ context.Context, alt question.Alternative) (question.Alternative, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.questions[alt.QuestionID]
	if !ok {
		return question.Alternative{}, question.ErrNotFound
	}
	if rec.Type != question.Objective {
		return question.Alternative{}, question.ErrNotObjective
	}
	alt.ID = uuid.NewString()
	alt.Position = 0
	for _, other := range repo.db.alternatives {
		if other.QuestionID == alt.QuestionID && other.Position >= alt.Position {
			alt.Position = other.Position + 1
		}
	}
	repo.db.alternatives[alt.ID] = &alt
	return alt, nil
}

func (repo *questionRepository) GetAlternative(_ context.Context, id string) (question.Alternative, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if alt, ok := repo.db.alternatives[id]; ok {
		return *alt, nil
	}
	return question.Alternative{}, question.ErrAlternativeNotFound
}

func (repo *questionRepository) QueryAlternatives(_ context.Context, filter question.AlternativeFilter) ([]question.Alternative, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	alts := make([]question.Alternative, 0)
	for _, alt := range repo.db.alternatives {
		if filter.Question != "" && alt.QuestionID != filter.Question {
			continue
		}
		if filter.CreatorID != "" {
			if rec, ok := repo.db.questions[alt.QuestionID]; !ok || rec.CreatorID != filter.CreatorID {
				continue
			}
		}
		alts = append(alts, *alt)
	}
	sort.Slice(alts, func(i, j int) bool {
		if alts[i].QuestionID != alts[j].QuestionID {
			return alts[i].QuestionID < alts[j].QuestionID
		}
		return alts[i].Position < alts[j].Position
	})
	return alts, nil
}

// checkAlternatives checks that alts keeps at least one alternative, one of which is correct.
func checkAlternatives(alts []question.Alternative) error {
	if len(alts) == 0 {
		return question.ErrLastAlternative
	}
	for _, alt := range alts {
		if alt.Correct {
			return nil
		}
	}
	return question.ErrNoCorrectAlternative
}

func (repo *questionRepository) UpdateAlternative(_ context.Context, alt question.Alternative) (question.Alternative, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.alternatives[alt.ID]
	if !ok {
		return question.Alternative{}, question.ErrAlternativeNotFound
	}
	alt.QuestionID = orig.QuestionID
	alt.Position = orig.Position

	alts := repo.db.alternativesOf(alt.QuestionID)
	for i := range alts {
		if alts[i].ID == alt.ID {
			alts[i] = alt
		}
	}
	if err := checkAlternatives(alts); err != nil {
		return question.Alternative{}, err
	}
	repo.db.alternatives[alt.ID] = &alt
	return alt, nil
}

func (repo *questionRepository) DeleteAlternative(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.alternatives[id]
	if !ok {
		return question.ErrAlternativeNotFound
	}
	alts := make([]question.Alternative, 0)
	for _, alt := range repo.db.alternativesOf(orig.QuestionID) {
		if alt.ID != id {
			alts = append(alts, alt)
		}
	}
	if err := checkAlternatives(alts); err != nil {
		return err
	}
	delete(repo.db.alternatives, id)
	return nil
}
