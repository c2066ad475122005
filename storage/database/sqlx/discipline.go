package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/discipline"
)

const disciplineSelect = `SELECT d.id, d.name, d.description, d.created_at,
	a.id AS area_id, a.name AS area_name, a.description AS area_description, a.created_at AS area_created_at
	FROM disciplines d JOIN study_areas a ON a.id = d.study_area_id`

type studyAreaRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row studyAreaRow) toStudyArea() discipline.StudyArea {
	return discipline.StudyArea{ID: row.ID, Name: row.Name, Description: row.Description, CreatedAt: row.CreatedAt.UTC()}
}

type disciplineRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Description     string    `db:"description"`
	CreatedAt       time.Time `db:"created_at"`
	AreaID          string    `db:"area_id"`
	AreaName        string    `db:"area_name"`
	AreaDescription string    `db:"area_description"`
	AreaCreatedAt   time.Time `db:"area_created_at"`
}

func (row disciplineRow) toDiscipline() discipline.Discipline {
	return discipline.Discipline{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.UTC(),
		StudyArea: discipline.StudyArea{
			ID:          row.AreaID,
			Name:        row.AreaName,
			Description: row.AreaDescription,
			CreatedAt:   row.AreaCreatedAt.UTC(),
		},
	}
}

// resolveStudyArea returns the id of the StudyArea referenced by ref, creating it when it is inline and unknown.
func resolveStudyArea(ctx context.Context, q sqlx.ExtContext, ref discipline.StudyAreaRef) (string, error) {
	if ref.ID != "" {
		if !validID(ref.ID) {
			return "", discipline.ErrStudyAreaNotFound
		}
		var id string
		err := sqlx.GetContext(ctx, q, &id, "SELECT id FROM study_areas WHERE id = $1", ref.ID)
		return id, trapNoRowsErr(err, discipline.ErrStudyAreaNotFound, "finding study area")
	}
	return getOrCreate(ctx, q,
		"INSERT INTO study_areas (id, name, description, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING",
		[]interface{}{uuid.NewString(), ref.Name, ref.Description, time.Now().UTC()},
		"SELECT id FROM study_areas WHERE lower(name) = lower($1)", ref.Name)
}

// resolveDiscipline returns the id of the Discipline referenced by ref, creating it (and its StudyArea)
// when it is inline and unknown.
func resolveDiscipline(ctx context.Context, q sqlx.ExtContext, ref discipline.Ref) (string, error) {
	if ref.ID != "" {
		if !validID(ref.ID) {
			return "", discipline.ErrNotFound
		}
		var id string
		err := sqlx.GetContext(ctx, q, &id, "SELECT id FROM disciplines WHERE id = $1", ref.ID)
		return id, trapNoRowsErr(err, discipline.ErrNotFound, "finding discipline")
	}
	areaID, err := resolveStudyArea(ctx, q, ref.StudyArea)
	if err != nil {
		return "", err
	}
	return getOrCreate(ctx, q,
		`INSERT INTO disciplines (id, name, description, study_area_id, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		[]interface{}{uuid.NewString(), ref.Name, ref.Description, areaID, time.Now().UTC()},
		"SELECT id FROM disciplines WHERE study_area_id = $1 AND lower(name) = lower($2)", areaID, ref.Name)
}

func resolveDisciplines(ctx context.Context, q sqlx.ExtContext, refs []discipline.Ref) ([]string, error) {
	ids := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		id, err := resolveDiscipline(ctx, q, ref)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// loadDisciplines returns the disciplines linked to each parent id through the join table.
func loadDisciplines(ctx context.Context, q sqlx.QueryerContext, table, parentCol string, parentIDs []string) (map[string][]discipline.Discipline, error) {
	var rows []struct {
		ParentID string `db:"parent_id"`
		disciplineRow
	}
	query := `SELECT l.` + parentCol + ` AS parent_id, d.id, d.name, d.description, d.created_at,
		a.id AS area_id, a.name AS area_name, a.description AS area_description, a.created_at AS area_created_at
		FROM ` + table + ` l JOIN disciplines d ON d.id = l.discipline_id JOIN study_areas a ON a.id = d.study_area_id
		WHERE l.` + parentCol + ` = ANY($1::uuid[]) ORDER BY d.name`
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(parentIDs)); err != nil {
		return nil, errors.Wrap(err, "loading "+table)
	}
	res := make(map[string][]discipline.Discipline, len(parentIDs))
	for _, row := range rows {
		res[row.ParentID] = append(res[row.ParentID], row.toDiscipline())
	}
	return res, nil
}

type disciplineRepository struct {
	db *sqlx.DB
}

var _ discipline.Repository = (*disciplineRepository)(nil) // interface compliance check

func NewDisciplineRepository(db *sqlx.DB) *disciplineRepository {
	return &disciplineRepository{db: db}
}

// Study areas

func (repo disciplineRepository) CreateStudyArea(ctx context.Context, sa discipline.StudyArea) (discipline.StudyArea, error) {
	sa.ID = uuid.NewString()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO study_areas (id, name, description, created_at) VALUES ($1, $2, $3, $4)",
		sa.ID, sa.Name, sa.Description, sa.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, "study_areas_name_key") {
			return discipline.StudyArea{}, discipline.ErrStudyAreaExists
		}
		return discipline.StudyArea{}, errors.Wrap(err, "inserting study area")
	}
	return sa, nil
}

func (repo disciplineRepository) GetStudyArea(ctx context.Context, id string) (discipline.StudyArea, error) {
	if !validID(id) {
		return discipline.StudyArea{}, discipline.ErrStudyAreaNotFound
	}
	var row studyAreaRow
	err := sqlx.GetContext(ctx, repo.db, &row, "SELECT id, name, description, created_at FROM study_areas WHERE id = $1", id)
	if err != nil {
		return discipline.StudyArea{}, trapNoRowsErr(err, discipline.ErrStudyAreaNotFound, "finding study area")
	}
	return row.toStudyArea(), nil
}

func (repo disciplineRepository) QueryStudyAreas(ctx context.Context, search string) ([]discipline.StudyArea, error) {
	var w where
	if search != "" {
		w.add("name ILIKE ?", "%"+search+"%")
	}
	var rows []studyAreaRow
	q := w.build(repo.db, "SELECT id, name, description, created_at FROM study_areas", "name")
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying study areas")
	}
	areas := make([]discipline.StudyArea, 0, len(rows))
	for _, row := range rows {
		areas = append(areas, row.toStudyArea())
	}
	return areas, nil
}

func (repo disciplineRepository) UpdateStudyArea(ctx context.Context, sa discipline.StudyArea) (discipline.StudyArea, error) {
	if !validID(sa.ID) {
		return discipline.StudyArea{}, discipline.ErrStudyAreaNotFound
	}
	res, err := repo.db.ExecContext(ctx,
		"UPDATE study_areas SET name = $2, description = $3 WHERE id = $1",
		sa.ID, sa.Name, sa.Description)
	if err != nil {
		if isUniqueViolation(err, "study_areas_name_key") {
			return discipline.StudyArea{}, discipline.ErrStudyAreaExists
		}
		return discipline.StudyArea{}, errors.Wrap(err, "updating study area")
	}
	return sa, checkAffected(res, discipline.ErrStudyAreaNotFound)
}

func (repo disciplineRepository) DeleteStudyArea(ctx context.Context, id string) error {
	if !validID(id) {
		return discipline.ErrStudyAreaNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM study_areas WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting study area")
	}
	return checkAffected(res, discipline.ErrStudyAreaNotFound)
}

// Disciplines

func (repo disciplineRepository) getDiscipline(ctx context.Context, q sqlx.QueryerContext, id string) (discipline.Discipline, error) {
	if !validID(id) {
		return discipline.Discipline{}, discipline.ErrNotFound
	}
	var row disciplineRow
	if err := sqlx.GetContext(ctx, q, &row, disciplineSelect+" WHERE d.id = $1", id); err != nil {
		return discipline.Discipline{}, trapNoRowsErr(err, discipline.ErrNotFound, "finding discipline")
	}
	return row.toDiscipline(), nil
}

func (repo disciplineRepository) CreateDiscipline(ctx context.Context, d discipline.Discipline, area discipline.StudyAreaRef) (discipline.Discipline, error) {
	d.ID = uuid.NewString()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		areaID, err := resolveStudyArea(ctx, tx, area)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO disciplines (id, name, description, study_area_id, created_at) VALUES ($1, $2, $3, $4, $5)",
			d.ID, d.Name, d.Description, areaID, d.CreatedAt.UTC())
		if err != nil {
			if isUniqueViolation(err, "disciplines_study_area_name_key") {
				return discipline.ErrDisciplineExists
			}
			return errors.Wrap(err, "inserting discipline")
		}
		d, err = repo.getDiscipline(ctx, tx, d.ID)
		return err
	})
	if err != nil {
		return discipline.Discipline{}, err
	}
	return d, nil
}

func (repo disciplineRepository) GetDiscipline(ctx context.Context, id string) (discipline.Discipline, error) {
	return repo.getDiscipline(ctx, repo.db, id)
}

func (repo disciplineRepository) QueryDisciplines(ctx context.Context, filter discipline.QueryFilter) ([]discipline.Discipline, error) {
	var w where
	if filter.StudyArea != "" {
		if !validID(filter.StudyArea) {
			return []discipline.Discipline{}, nil
		}
		w.add("d.study_area_id = ?", filter.StudyArea)
	}
	if filter.Search != "" {
		w.add("d.name ILIKE ?", "%"+filter.Search+"%")
	}
	var rows []disciplineRow
	q := w.build(repo.db, disciplineSelect, "d.name, a.name")
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying disciplines")
	}
	disciplines := make([]discipline.Discipline, 0, len(rows))
	for _, row := range rows {
		disciplines = append(disciplines, row.toDiscipline())
	}
	return disciplines, nil
}

func (repo disciplineRepository) UpdateDiscipline(ctx context.Context, d discipline.Discipline, area *discipline.StudyAreaRef) (discipline.Discipline, error) {
	if !validID(d.ID) {
		return discipline.Discipline{}, discipline.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		areaID := d.StudyArea.ID
		if area != nil {
			var err error
			if areaID, err = resolveStudyArea(ctx, tx, *area); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE disciplines SET name = $2, description = $3, study_area_id = $4 WHERE id = $1",
			d.ID, d.Name, d.Description, areaID)
		if err != nil {
			if isUniqueViolation(err, "disciplines_study_area_name_key") {
				return discipline.ErrDisciplineExists
			}
			return errors.Wrap(err, "updating discipline")
		}
		if err = checkAffected(res, discipline.ErrNotFound); err != nil {
			return err
		}
		d, err = repo.getDiscipline(ctx, tx, d.ID)
		return err
	})
	if err != nil {
		return discipline.Discipline{}, err
	}
	return d, nil
}

func (repo disciplineRepository) DeleteDiscipline(ctx context.Context, id string) error {
	if !validID(id) {
		return discipline.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM disciplines WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting discipline")
	}
	return checkAffected(res, discipline.ErrNotFound)
}
