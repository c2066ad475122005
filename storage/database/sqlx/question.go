package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

const questionSelect = `SELECT q.id, q.type, q.education_level, q.difficulty, q.exam_reference, q.created_at, q.updated_at,
	s.text AS statement_text, s.image AS statement_image,
	u.id AS creator_id, u.name AS creator_name, u.email AS creator_email
	FROM questions q
	JOIN users u ON u.id = q.creator_id
	LEFT JOIN statements s ON s.question_id = q.id`

type questionRow struct {
	ID             string      `db:"id"`
	Type           string      `db:"type"`
	EducationLevel string      `db:"education_level"`
	Difficulty     string      `db:"difficulty"`
	ExamReference  string      `db:"exam_reference"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
	StatementText  null.String `db:"statement_text"`
	StatementImage null.String `db:"statement_image"`
	CreatorID      string      `db:"creator_id"`
	CreatorName    string      `db:"creator_name"`
	CreatorEmail   string      `db:"creator_email"`
}

func (row questionRow) toQuestion() question.Question {
	return question.Question{
		ID:             row.ID,
		Type:           question.Type(row.Type),
		Statement:      question.Statement{Text: row.StatementText.String, Image: row.StatementImage.String},
		EducationLevel: row.EducationLevel,
		Difficulty:     row.Difficulty,
		ExamReference:  row.ExamReference,
		Creator:        user.Summary{ID: row.CreatorID, Name: row.CreatorName, Email: row.CreatorEmail},
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type alternativeRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Content    string `db:"content"`
	Correct    bool   `db:"correct"`
	Position   int    `db:"position"`
}

func (row alternativeRow) toAlternative() question.Alternative {
	return question.Alternative{
		ID:         row.ID,
		QuestionID: row.QuestionID,
		Content:    row.Content,
		Correct:    row.Correct,
		Position:   row.Position,
	}
}

// loadQuestionSummaries returns the question summaries linked to each parent id through the
// positioned join table.
func loadQuestionSummaries(ctx context.Context, q sqlx.QueryerContext, table, parentCol string, parentIDs []string) (map[string][]question.Summary, error) {
	var rows []struct {
		ParentID string      `db:"parent_id"`
		ID       string      `db:"id"`
		Type     string      `db:"type"`
		Text     null.String `db:"text"`
	}
	query := `SELECT l.` + parentCol + ` AS parent_id, q.id, q.type, s.text
		FROM ` + table + ` l JOIN questions q ON q.id = l.question_id LEFT JOIN statements s ON s.question_id = q.id
		WHERE l.` + parentCol + ` = ANY($1::uuid[]) ORDER BY l.position, q.created_at`
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(parentIDs)); err != nil {
		return nil, errors.Wrap(err, "loading "+table)
	}
	res := make(map[string][]question.Summary, len(parentIDs))
	for _, row := range rows {
		res[row.ParentID] = append(res[row.ParentID], question.Summary{
			ID:   row.ID,
			Type: question.Type(row.Type),
			Text: row.Text.String,
		})
	}
	return res, nil
}

type questionRepository struct {
	db *sqlx.DB
}

var _ question.Repository = (*questionRepository)(nil) // interface compliance check

func NewQuestionRepository(db *sqlx.DB) *questionRepository {
	return &questionRepository{db: db}
}

// hydrate loads the disciplines, alternatives and question banks of qs.
func (repo questionRepository) hydrate(ctx context.Context, q sqlx.QueryerContext, qs []question.Question) error {
	if len(qs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(qs))
	for _, qn := range qs {
		ids = append(ids, qn.ID)
	}

	disciplines, err := loadDisciplines(ctx, q, "question_disciplines", "question_id", ids)
	if err != nil {
		return err
	}

	var altRows []alternativeRow
	err = sqlx.SelectContext(ctx, q, &altRows,
		`SELECT id, question_id, content, correct, position FROM alternatives
		WHERE question_id = ANY($1::uuid[]) ORDER BY position, id`,
		pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "loading alternatives")
	}
	alternatives := make(map[string][]question.Alternative)
	for _, row := range altRows {
		alternatives[row.QuestionID] = append(alternatives[row.QuestionID], row.toAlternative())
	}

	var bankRows []struct {
		QuestionID string `db:"question_id"`
		BankID     string `db:"question_bank_id"`
	}
	err = sqlx.SelectContext(ctx, q, &bankRows,
		"SELECT question_id, question_bank_id FROM bank_questions WHERE question_id = ANY($1::uuid[])",
		pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "loading question banks")
	}
	banks := make(map[string][]string)
	for _, row := range bankRows {
		banks[row.QuestionID] = append(banks[row.QuestionID], row.BankID)
	}

	for i := range qs {
		qn := &qs[i]
		qn.Disciplines = disciplines[qn.ID]
		if qn.Disciplines == nil {
			qn.Disciplines = []discipline.Discipline{}
		}
		qn.Alternatives = alternatives[qn.ID]
		if qn.Alternatives == nil {
			qn.Alternatives = []question.Alternative{}
		}
		qn.QuestionBanks = banks[qn.ID]
		if qn.QuestionBanks == nil {
			qn.QuestionBanks = []string{}
		}
	}
	return nil
}

func (repo questionRepository) getQuestion(ctx context.Context, q sqlx.QueryerContext, id string) (question.Question, error) {
	if !validID(id) {
		return question.Question{}, question.ErrNotFound
	}
	var row questionRow
	if err := sqlx.GetContext(ctx, q, &row, questionSelect+" WHERE q.id = $1", id); err != nil {
		return question.Question{}, trapNoRowsErr(err, question.ErrNotFound, "finding question")
	}
	qs := []question.Question{row.toQuestion()}
	if err := repo.hydrate(ctx, q, qs); err != nil {
		return question.Question{}, err
	}
	return qs[0], nil
}

func upsertStatement(ctx context.Context, tx *sqlx.Tx, qID string, st question.Statement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO statements (id, question_id, text, image) VALUES ($1, $2, $3, $4)
		ON CONFLICT (question_id) DO UPDATE SET text = EXCLUDED.text, image = EXCLUDED.image`,
		uuid.NewString(), qID, null.NewString(st.Text, st.Text != ""), null.NewString(st.Image, st.Image != ""))
	return errors.Wrap(err, "upserting statement")
}

func insertAlternatives(ctx context.Context, tx *sqlx.Tx, qID string, alts []question.Alternative) error {
	for _, alt := range alts {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO alternatives (id, question_id, content, correct, position) VALUES ($1, $2, $3, $4, $5)",
			uuid.NewString(), qID, alt.Content, alt.Correct, alt.Position)
		if err != nil {
			return errors.Wrap(err, "inserting alternative")
		}
	}
	return nil
}

func (repo questionRepository) CreateQuestion(ctx context.Context, qn question.Question, refs []discipline.Ref) (question.Question, error) {
	qn.ID = uuid.NewString()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		disciplineIDs, err := resolveDisciplines(ctx, tx, refs)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id, type, creator_id, education_level, difficulty, exam_reference, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			qn.ID, string(qn.Type), qn.Creator.ID, qn.EducationLevel, qn.Difficulty, qn.ExamReference,
			qn.CreatedAt.UTC(), qn.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(referenceError(err), "inserting question")
		}
		if err = upsertStatement(ctx, tx, qn.ID, qn.Statement); err != nil {
			return err
		}
		if err = insertAlternatives(ctx, tx, qn.ID, qn.Alternatives); err != nil {
			return err
		}
		if err = appendLinks(ctx, tx, "question_disciplines", "question_id", "discipline_id", qn.ID, disciplineIDs, false); err != nil {
			return err
		}
		qn, err = repo.getQuestion(ctx, tx, qn.ID)
		return err
	})
	if err != nil {
		return question.Question{}, err
	}
	return qn, nil
}

func (repo questionRepository) GetQuestion(ctx context.Context, id string) (question.Question, error) {
	return repo.getQuestion(ctx, repo.db, id)
}

// questionWhere returns the conditions of filter, or false when filter cannot match anything.
func questionWhere(filter question.QueryFilter) (w where, ok bool) {
	if filter.IDs != nil {
		w.add("q.id = ANY(?::uuid[])", pq.Array(validIDs(filter.IDs)))
	}
	if filter.CreatorID != "" {
		if !validID(filter.CreatorID) {
			return w, false
		}
		w.add("q.creator_id = ?", filter.CreatorID)
	}
	if filter.Type != "" {
		w.add("q.type = ?", filter.Type)
	}
	if filter.Discipline != "" {
		if !validID(filter.Discipline) {
			return w, false
		}
		w.add("EXISTS (SELECT 1 FROM question_disciplines qd WHERE qd.question_id = q.id AND qd.discipline_id = ?)", filter.Discipline)
	}
	if filter.Search != "" {
		w.add("s.text ILIKE ?", "%"+filter.Search+"%")
	}
	return w, true
}

func (repo questionRepository) QueryQuestions(ctx context.Context, filter question.QueryFilter) ([]question.Question, error) {
	w, ok := questionWhere(filter)
	if !ok {
		return []question.Question{}, nil
	}
	var rows []questionRow
	q := w.build(repo.db, questionSelect, "q.created_at DESC")
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	qs := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		qs = append(qs, row.toQuestion())
	}
	if err := repo.hydrate(ctx, repo.db, qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (repo questionRepository) CountQuestions(ctx context.Context, filter question.QueryFilter) (int, error) {
	w, ok := questionWhere(filter)
	if !ok {
		return 0, nil
	}
	var n int
	q := w.build(repo.db, "SELECT count(*) FROM questions q LEFT JOIN statements s ON s.question_id = q.id", "")
	err := sqlx.GetContext(ctx, repo.db, &n, q, w.args...)
	return n, errors.Wrap(err, "counting questions")
}

func (repo questionRepository) UpdateQuestion(ctx context.Context, qn question.Question, refs []discipline.Ref, replaceAlternatives bool) (question.Question, error) {
	if !validID(qn.ID) {
		return question.Question{}, question.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE questions SET type = $2, education_level = $3, difficulty = $4, exam_reference = $5, updated_at = $6
			WHERE id = $1`,
			qn.ID, string(qn.Type), qn.EducationLevel, qn.Difficulty, qn.ExamReference, qn.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "updating question")
		}
		if err = checkAffected(res, question.ErrNotFound); err != nil {
			return err
		}
		if err = upsertStatement(ctx, tx, qn.ID, qn.Statement); err != nil {
			return err
		}
		if refs != nil {
			disciplineIDs, err := resolveDisciplines(ctx, tx, refs)
			if err != nil {
				return err
			}
			if err = replaceLinks(ctx, tx, "question_disciplines", "question_id", "discipline_id", qn.ID, disciplineIDs, false); err != nil {
				return err
			}
		}
		if replaceAlternatives {
			if _, err = tx.ExecContext(ctx, "DELETE FROM alternatives WHERE question_id = $1", qn.ID); err != nil {
				return errors.Wrap(err, "deleting alternatives")
			}
			if err = insertAlternatives(ctx, tx, qn.ID, qn.Alternatives); err != nil {
				return err
			}
		}
		qn, err = repo.getQuestion(ctx, tx, qn.ID)
		return err
	})
	if err != nil {
		return question.Question{}, err
	}
	return qn, nil
}

func (repo questionRepository) DeleteQuestion(ctx context.Context, id string) error {
	if !validID(id) {
		return question.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM questions WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return checkAffected(res, question.ErrNotFound)
}

// Alternatives

const alternativeSelect = "SELECT a.id, a.question_id, a.content, a.correct, a.position FROM alternatives a"

func (repo questionRepository) getAlternative(ctx context.Context, q sqlx.QueryerContext, id string) (question.Alternative, error) {
	if !validID(id) {
		return question.Alternative{}, question.ErrAlternativeNotFound
	}
	var row alternativeRow
	if err := sqlx.GetContext(ctx, q, &row, alternativeSelect+" WHERE a.id = $1", id); err != nil {
		return question.Alternative{}, trapNoRowsErr(err, question.ErrAlternativeNotFound, "finding alternative")
	}
	return row.toAlternative(), nil
}

func (repo questionRepository) CreateAlternative(ctx context.Context, alt question.Alternative) (question.Alternative, error) {
	if !validID(alt.QuestionID) {
		return question.Alternative{}, question.ErrNotFound
	}
	alt.ID = uuid.NewString()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// the type is checked under the row lock taken by concurrent question updates
		var typ string
		err := tx.GetContext(ctx, &typ, "SELECT type FROM questions WHERE id = $1 FOR UPDATE", alt.QuestionID)
		if err != nil {
			return trapNoRowsErr(err, question.ErrNotFound, "locking question")
		}
		if question.Type(typ) != question.Objective {
			return question.ErrNotObjective
		}
		err = tx.GetContext(ctx, &alt.Position,
			`INSERT INTO alternatives (id, question_id, content, correct, position)
			SELECT $1::uuid, $2::uuid, $3::text, $4::boolean, COALESCE(MAX(position) + 1, 0) FROM alternatives WHERE question_id = $2::uuid
			RETURNING position`,
			alt.ID, alt.QuestionID, alt.Content, alt.Correct)
		return errors.Wrap(err, "inserting alternative")
	})
	if err != nil {
		return question.Alternative{}, err
	}
	return alt, nil
}

func (repo questionRepository) GetAlternative(ctx context.Context, id string) (question.Alternative, error) {
	return repo.getAlternative(ctx, repo.db, id)
}

func (repo questionRepository) QueryAlternatives(ctx context.Context, filter question.AlternativeFilter) ([]question.Alternative, error) {
	var w where
	if filter.Question != "" {
		if !validID(filter.Question) {
			return []question.Alternative{}, nil
		}
		w.add("a.question_id = ?", filter.Question)
	}
	if filter.CreatorID != "" {
		if !validID(filter.CreatorID) {
			return []question.Alternative{}, nil
		}
		w.add("EXISTS (SELECT 1 FROM questions q WHERE q.id = a.question_id AND q.creator_id = ?)", filter.CreatorID)
	}
	var rows []alternativeRow
	q := w.build(repo.db, alternativeSelect, "a.question_id, a.position")
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying alternatives")
	}
	alts := make([]question.Alternative, 0, len(rows))
	for _, row := range rows {
		alts = append(alts, row.toAlternative())
	}
	return alts, nil
}

// checkAlternatives locks the question of an alternative and checks that it keeps at least one
// alternative, one of which is correct.
func checkAlternatives(ctx context.Context, tx *sqlx.Tx, qID string) error {
	var counts struct {
		Total   int `db:"total"`
		Correct int `db:"correct"`
	}
	err := sqlx.GetContext(ctx, tx, &counts,
		`SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE correct) AS correct
		FROM alternatives WHERE question_id = $1`,
		qID)
	if err != nil {
		return errors.Wrap(err, "counting alternatives")
	}
	switch {
	case counts.Total == 0:
		return question.ErrLastAlternative
	case counts.Correct == 0:
		return question.ErrNoCorrectAlternative
	}
	return nil
}

func lockQuestion(ctx context.Context, tx *sqlx.Tx, qID string) error {
	_, err := tx.ExecContext(ctx, "SELECT id FROM questions WHERE id = $1 FOR UPDATE", qID)
	return errors.Wrap(err, "locking question")
}

func (repo questionRepository) UpdateAlternative(ctx context.Context, alt question.Alternative) (question.Alternative, error) {
	if !validID(alt.ID) {
		return question.Alternative{}, question.ErrAlternativeNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockQuestion(ctx, tx, alt.QuestionID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE alternatives SET content = $2, correct = $3 WHERE id = $1",
			alt.ID, alt.Content, alt.Correct)
		if err != nil {
			return errors.Wrap(err, "updating alternative")
		}
		if err = checkAffected(res, question.ErrAlternativeNotFound); err != nil {
			return err
		}
		if err = checkAlternatives(ctx, tx, alt.QuestionID); err != nil {
			return err
		}
		alt, err = repo.getAlternative(ctx, tx, alt.ID)
		return err
	})
	if err != nil {
		return question.Alternative{}, err
	}
	return alt, nil
}

func (repo questionRepository) DeleteAlternative(ctx context.Context, id string) error {
	alt, err := repo.getAlternative(ctx, repo.db, id)
	if err != nil {
		return err
	}
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockQuestion(ctx, tx, alt.QuestionID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM alternatives WHERE id = $1", id)
		if err != nil {
			return errors.Wrap(err, "deleting alternative")
		}
		if err = checkAffected(res, question.ErrAlternativeNotFound); err != nil {
			return err
		}
		return checkAlternatives(ctx, tx, alt.QuestionID)
	})
}
