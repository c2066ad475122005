package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

const examSelect = `SELECT e.id, e.title, e.description, e.duration, e.created_at, e.updated_at,
	qb.id AS bank_id, qb.name AS bank_name,
	u.id AS owner_id, u.name AS owner_name, u.email AS owner_email
	FROM exams e
	JOIN users u ON u.id = e.owner_id
	LEFT JOIN question_banks qb ON qb.id = e.question_bank_id`

// copyBankQuestions appends the questions of a bank to an exam, keeping the bank order.
const copyBankQuestions = `INSERT INTO exam_questions (exam_id, question_id, position)
	SELECT $1::uuid, bq.question_id,
		(SELECT COALESCE(MAX(position) + 1, 0) FROM exam_questions WHERE exam_id = $1::uuid)
			+ ROW_NUMBER() OVER (ORDER BY bq.position) - 1
	FROM bank_questions bq
	WHERE bq.question_bank_id = $2::uuid
		AND NOT EXISTS (SELECT 1 FROM exam_questions eq WHERE eq.exam_id = $1::uuid AND eq.question_id = bq.question_id)
	ON CONFLICT DO NOTHING`

type examRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Duration    int         `db:"duration"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
	BankID      null.String `db:"bank_id"`
	BankName    null.String `db:"bank_name"`
	OwnerID     string      `db:"owner_id"`
	OwnerName   string      `db:"owner_name"`
	OwnerEmail  string      `db:"owner_email"`
}

func (row examRow) toExam() exam.Exam {
	e := exam.Exam{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Duration:    row.Duration,
		Owner:       user.Summary{ID: row.OwnerID, Name: row.OwnerName, Email: row.OwnerEmail},
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.BankID.Valid {
		e.QuestionBank = &bank.Summary{ID: row.BankID.String, Name: row.BankName.String}
	}
	return e
}

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db}
}

func (repo examRepository) hydrate(ctx context.Context, q sqlx.QueryerContext, exams []exam.Exam) error {
	if len(exams) == 0 {
		return nil
	}
	ids := make([]string, 0, len(exams))
	for _, e := range exams {
		ids = append(ids, e.ID)
	}
	collabs, err := loadMembers(ctx, q, "exam_collaborators", "exam_id", ids)
	if err != nil {
		return err
	}
	questions, err := loadQuestionSummaries(ctx, q, "exam_questions", "exam_id", ids)
	if err != nil {
		return err
	}
	for i := range exams {
		e := &exams[i]
		e.Collaborators = collabs[e.ID]
		if e.Collaborators == nil {
			e.Collaborators = []user.Summary{}
		}
		e.Questions = questions[e.ID]
		if e.Questions == nil {
			e.Questions = []question.Summary{}
		}
	}
	return nil
}

func (repo examRepository) getExam(ctx context.Context, q sqlx.QueryerContext, id string) (exam.Exam, error) {
	if !validID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var row examRow
	if err := sqlx.GetContext(ctx, q, &row, examSelect+" WHERE e.id = $1", id); err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "finding exam")
	}
	exams := []exam.Exam{row.toExam()}
	if err := repo.hydrate(ctx, q, exams); err != nil {
		return exam.Exam{}, err
	}
	return exams[0], nil
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	e.ID = uuid.NewString()
	var bankID null.String
	if e.QuestionBank != nil {
		bankID = null.StringFrom(e.QuestionBank.ID)
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exams (id, title, description, duration, question_bank_id, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.Title, e.Description, e.Duration, bankID, e.Owner.ID, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(referenceError(err), "inserting exam")
		}
		if err = appendLinks(ctx, tx, "exam_collaborators", "exam_id", "user_id", e.ID, summaryIDs(e.Collaborators), false); err != nil {
			return err
		}
		if err = appendLinks(ctx, tx, "exam_questions", "exam_id", "question_id", e.ID, questionSummaryIDs(e.Questions), true); err != nil {
			return err
		}
		if bankID.Valid {
			if _, err = tx.ExecContext(ctx, copyBankQuestions, e.ID, bankID.String); err != nil {
				return errors.Wrap(err, "copying bank questions")
			}
		}
		e, err = repo.getExam(ctx, tx, e.ID)
		return err
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

func (repo examRepository) GetExam(ctx context.Context, id string) (exam.Exam, error) {
	return repo.getExam(ctx, repo.db, id)
}

func examWhere(filter exam.QueryFilter) (w where, ok bool) {
	if filter.MemberID != "" {
		if !validID(filter.MemberID) {
			return w, false
		}
		w.add(`(e.owner_id = ? OR EXISTS (
			SELECT 1 FROM exam_collaborators c WHERE c.exam_id = e.id AND c.user_id = ?))`,
			filter.MemberID, filter.MemberID)
	}
	if filter.Search != "" {
		w.add("e.title ILIKE ?", "%"+filter.Search+"%")
	}
	return w, true
}

func (repo examRepository) QueryExams(ctx context.Context, filter exam.QueryFilter) ([]exam.Exam, error) {
	w, ok := examWhere(filter)
	if !ok {
		return []exam.Exam{}, nil
	}
	var rows []examRow
	q := w.build(repo.db, examSelect, "e.created_at DESC")
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.toExam())
	}
	if err := repo.hydrate(ctx, repo.db, exams); err != nil {
		return nil, err
	}
	return exams, nil
}

func (repo examRepository) CountExams(ctx context.Context, filter exam.QueryFilter) (int, error) {
	w, ok := examWhere(filter)
	if !ok {
		return 0, nil
	}
	var n int
	q := w.build(repo.db, "SELECT count(*) FROM exams e", "")
	err := sqlx.GetContext(ctx, repo.db, &n, q, w.args...)
	return n, errors.Wrap(err, "counting exams")
}

func (repo examRepository) UpdateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	if !validID(e.ID) {
		return exam.Exam{}, exam.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE exams SET title = $2, description = $3, duration = $4, updated_at = $5 WHERE id = $1",
			e.ID, e.Title, e.Description, e.Duration, e.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "updating exam")
		}
		if err = checkAffected(res, exam.ErrNotFound); err != nil {
			return err
		}
		if err = replaceLinks(ctx, tx, "exam_collaborators", "exam_id", "user_id", e.ID, summaryIDs(e.Collaborators), false); err != nil {
			return err
		}
		if err = replaceLinks(ctx, tx, "exam_questions", "exam_id", "question_id", e.ID, questionSummaryIDs(e.Questions), true); err != nil {
			return err
		}
		e, err = repo.getExam(ctx, tx, e.ID)
		return err
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

func (repo examRepository) DeleteExam(ctx context.Context, id string) error {
	if !validID(id) {
		return exam.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM exams WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return checkAffected(res, exam.ErrNotFound)
}

func (repo examRepository) AddExamQuestions(ctx context.Context, id string, questionIDs ...string) (exam.Exam, error) {
	if !validID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var e exam.Exam
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := appendLinks(ctx, tx, "exam_questions", "exam_id", "question_id", id, validIDs(questionIDs), true); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE exams SET updated_at = $2 WHERE id = $1", id, time.Now().UTC()); err != nil {
			return errors.Wrap(err, "updating exam")
		}
		var err error
		e, err = repo.getExam(ctx, tx, id)
		return err
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

func (repo examRepository) AddExamQuestionBank(ctx context.Context, id, bankID string) (exam.Exam, error) {
	if !validID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var e exam.Exam
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE exams SET question_bank_id = $2, updated_at = $3 WHERE id = $1",
			id, bankID, time.Now().UTC())
		if err != nil {
			return errors.Wrap(referenceError(err), "updating exam")
		}
		if err = checkAffected(res, exam.ErrNotFound); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, copyBankQuestions, id, bankID); err != nil {
			return errors.Wrap(err, "copying bank questions")
		}
		e, err = repo.getExam(ctx, tx, id)
		return err
	})
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}
