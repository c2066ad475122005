package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

const bankSelect = `SELECT b.id, b.name, b.description, b.created_at, b.updated_at,
	u.id AS owner_id, u.name AS owner_name, u.email AS owner_email
	FROM question_banks b JOIN users u ON u.id = b.owner_id`

type bankRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	OwnerID     string    `db:"owner_id"`
	OwnerName   string    `db:"owner_name"`
	OwnerEmail  string    `db:"owner_email"`
}

func (row bankRow) toQuestionBank() bank.QuestionBank {
	return bank.QuestionBank{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Owner:       user.Summary{ID: row.OwnerID, Name: row.OwnerName, Email: row.OwnerEmail},
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func questionSummaryIDs(qs []question.Summary) []string {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids
}

type bankRepository struct {
	db *sqlx.DB
}

var _ bank.Repository = (*bankRepository)(nil) // interface compliance check

func NewBankRepository(db *sqlx.DB) *bankRepository {
	return &bankRepository{db: db}
}

// hydrate loads the collaborators, disciplines and questions of banks.
func (repo bankRepository) hydrate(ctx context.Context, q sqlx.QueryerContext, banks []bank.QuestionBank) error {
	if len(banks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(banks))
	for _, b := range banks {
		ids = append(ids, b.ID)
	}
	collabs, err := loadMembers(ctx, q, "bank_collaborators", "question_bank_id", ids)
	if err != nil {
		return err
	}
	disciplines, err := loadDisciplines(ctx, q, "bank_disciplines", "question_bank_id", ids)
	if err != nil {
		return err
	}
	questions, err := loadQuestionSummaries(ctx, q, "bank_questions", "question_bank_id", ids)
	if err != nil {
		return err
	}
	for i := range banks {
		b := &banks[i]
		b.Collaborators = collabs[b.ID]
		if b.Collaborators == nil {
			b.Collaborators = []user.Summary{}
		}
		b.Disciplines = disciplines[b.ID]
		if b.Disciplines == nil {
			b.Disciplines = []discipline.Discipline{}
		}
		b.Questions = questions[b.ID]
		if b.Questions == nil {
			b.Questions = []question.Summary{}
		}
	}
	return nil
}

func (repo bankRepository) getQuestionBank(ctx context.Context, q sqlx.QueryerContext, id string) (bank.QuestionBank, error) {
	if !validID(id) {
		return bank.QuestionBank{}, bank.ErrNotFound
	}
	var row bankRow
	if err := sqlx.GetContext(ctx, q, &row, bankSelect+" WHERE b.id = $1", id); err != nil {
		return bank.QuestionBank{}, trapNoRowsErr(err, bank.ErrNotFound, "finding question bank")
	}
	banks := []bank.QuestionBank{row.toQuestionBank()}
	if err := repo.hydrate(ctx, q, banks); err != nil {
		return bank.QuestionBank{}, err
	}
	return banks[0], nil
}

func (repo bankRepository) CheckNameUniqueness(ctx context.Context, name, excludedID string) error {
	var exists bool
	err := sqlx.GetContext(ctx, repo.db, &exists,
		"SELECT EXISTS (SELECT 1 FROM question_banks WHERE lower(name) = lower($1) AND id::text <> $2)",
		name, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking question bank name uniqueness")
	}
	if exists {
		return bank.ErrNameExists
	}
	return nil
}

// writeLinks replaces the collaborators and questions of b, and its disciplines when refs is not nil.
func (repo bankRepository) writeLinks(ctx context.Context, tx *sqlx.Tx, b bank.QuestionBank, refs []discipline.Ref) error {
	if refs != nil {
		disciplineIDs, err := resolveDisciplines(ctx, tx, refs)
		if err != nil {
			return err
		}
		if err = replaceLinks(ctx, tx, "bank_disciplines", "question_bank_id", "discipline_id", b.ID, disciplineIDs, false); err != nil {
			return err
		}
	}
	if err := replaceLinks(ctx, tx, "bank_collaborators", "question_bank_id", "user_id", b.ID, summaryIDs(b.Collaborators), false); err != nil {
		return err
	}
	return replaceLinks(ctx, tx, "bank_questions", "question_bank_id", "question_id", b.ID, questionSummaryIDs(b.Questions), true)
}

func bankNameErr(err error, msg string) error {
	if isUniqueViolation(err, "question_banks_name_key") {
		return bank.ErrNameExists
	}
	return errors.Wrap(referenceError(err), msg)
}

func (repo bankRepository) CreateQuestionBank(ctx context.Context, b bank.QuestionBank, refs []discipline.Ref) (bank.QuestionBank, error) {
	b.ID = uuid.NewString()
	if refs == nil {
		refs = []discipline.Ref{}
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO question_banks (id, name, description, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			b.ID, b.Name, b.Description, b.Owner.ID, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
		if err != nil {
			return bankNameErr(err, "inserting question bank")
		}
		if err = repo.writeLinks(ctx, tx, b, refs); err != nil {
			return err
		}
		b, err = repo.getQuestionBank(ctx, tx, b.ID)
		return err
	})
	if err != nil {
		return bank.QuestionBank{}, err
	}
	return b, nil
}

func (repo bankRepository) GetQuestionBank(ctx context.Context, id string) (bank.QuestionBank, error) {
	return repo.getQuestionBank(ctx, repo.db, id)
}

func bankWhere(filter bank.QueryFilter) (w where, ok bool) {
	if filter.MemberID != "" {
		if !validID(filter.MemberID) {
			return w, false
		}
		w.add(`(b.owner_id = ? OR EXISTS (
			SELECT 1 FROM bank_collaborators c WHERE c.question_bank_id = b.id AND c.user_id = ?))`,
			filter.MemberID, filter.MemberID)
	}
	if filter.Search != "" {
		w.add("b.name ILIKE ?", "%"+filter.Search+"%")
	}
	return w, true
}

func (repo bankRepository) QueryQuestionBanks(ctx context.Context, filter bank.QueryFilter) ([]bank.QuestionBank, error) {
	w, ok := bankWhere(filter)
	if !ok {
		return []bank.QuestionBank{}, nil
	}
	var rows []bankRow
	q := w.build(repo.db, bankSelect, "b.created_at DESC")
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying question banks")
	}
	banks := make([]bank.QuestionBank, 0, len(rows))
	for _, row := range rows {
		banks = append(banks, row.toQuestionBank())
	}
	if err := repo.hydrate(ctx, repo.db, banks); err != nil {
		return nil, err
	}
	return banks, nil
}

func (repo bankRepository) CountQuestionBanks(ctx context.Context, filter bank.QueryFilter) (int, error) {
	w, ok := bankWhere(filter)
	if !ok {
		return 0, nil
	}
	var n int
	q := w.build(repo.db, "SELECT count(*) FROM question_banks b", "")
	err := sqlx.GetContext(ctx, repo.db, &n, q, w.args...)
	return n, errors.Wrap(err, "counting question banks")
}

func (repo bankRepository) UpdateQuestionBank(ctx context.Context, b bank.QuestionBank, refs []discipline.Ref) (bank.QuestionBank, error) {
	if !validID(b.ID) {
		return bank.QuestionBank{}, bank.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE question_banks SET name = $2, description = $3, updated_at = $4 WHERE id = $1",
			b.ID, b.Name, b.Description, b.UpdatedAt.UTC())
		if err != nil {
			return bankNameErr(err, "updating question bank")
		}
		if err = checkAffected(res, bank.ErrNotFound); err != nil {
			return err
		}
		if err = repo.writeLinks(ctx, tx, b, refs); err != nil {
			return err
		}
		b, err = repo.getQuestionBank(ctx, tx, b.ID)
		return err
	})
	if err != nil {
		return bank.QuestionBank{}, err
	}
	return b, nil
}

func (repo bankRepository) DeleteQuestionBank(ctx context.Context, id string) error {
	if !validID(id) {
		return bank.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM question_banks WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting question bank")
	}
	return checkAffected(res, bank.ErrNotFound)
}
