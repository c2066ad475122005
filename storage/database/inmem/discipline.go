package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/sistira/core/discipline"
)

type disciplineRepository struct {
	db *DB
}

var _ discipline.Repository = (*disciplineRepository)(nil) // interface compliance check

func NewDisciplineRepository(db *DB) discipline.Repository {
	return &disciplineRepository{db: db}
}

func (db *DB) studyAreaByName(name string) (*discipline.StudyArea, bool) {
	for _, sa := range db.studyAreas {
		if strings.EqualFold(sa.Name, name) {
			return sa, true
		}
	}
	return nil, false
}

func (db *DB) disciplineByName(areaID, name string) (*disciplineRecord, bool) {
	for _, d := range db.disciplines {
		if d.StudyAreaID == areaID && strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return nil, false
}

func (db *DB) discipline(rec *disciplineRecord) discipline.Discipline {
	d := discipline.Discipline{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
	}
	if sa, ok := db.studyAreas[rec.StudyAreaID]; ok {
		d.StudyArea = *sa
	}
	return d
}

// disciplinesByID resolves ids into disciplines sorted by name, skipping deleted ones.
func (db *DB) disciplinesByID(ids []string) []discipline.Discipline {
	ds := make([]discipline.Discipline, 0, len(ids))
	for _, id := range ids {
		if rec, ok := db.disciplines[id]; ok {
			ds = append(ds, db.discipline(rec))
		}
	}
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Name < ds[j].Name })
	return ds
}

// lookupStudyArea returns the id of the StudyArea referenced by ref, or "" when it is inline and unknown.
func (db *DB) lookupStudyArea(ref discipline.StudyAreaRef) (string, error) {
	if ref.ID != "" {
		if _, ok := db.studyAreas[ref.ID]; !ok {
			return "", discipline.ErrStudyAreaNotFound
		}
		return ref.ID, nil
	}
	if sa, ok := db.studyAreaByName(ref.Name); ok {
		return sa.ID, nil
	}
	return "", nil
}

// resolveStudyArea returns the id of the StudyArea referenced by ref, creating it when it is inline and unknown.
func (db *DB) resolveStudyArea(ref discipline.StudyAreaRef) (string, error) {
	id, err := db.lookupStudyArea(ref)
	if err != nil || id != "" {
		return id, err
	}
	sa := &discipline.StudyArea{
		ID:          uuid.NewString(),
		Name:        ref.Name,
		Description: ref.Description,
		CreatedAt:   now(),
	}
	db.studyAreas[sa.ID] = sa
	return sa.ID, nil
}

// resolveDisciplines returns the ids of the disciplines referenced by refs, creating the inline
// ones that are unknown. Nothing is created when a ref is invalid.
func (db *DB) resolveDisciplines(refs []discipline.Ref) ([]string, error) {
	for _, ref := range refs {
		if ref.ID != "" {
			if _, ok := db.disciplines[ref.ID]; !ok {
				return nil, discipline.ErrNotFound
			}
		} else if ref.StudyArea.ID != "" {
			if _, ok := db.studyAreas[ref.StudyArea.ID]; !ok {
				return nil, discipline.ErrStudyAreaNotFound
			}
		}
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.ID != "" {
			ids = appendMissing(ids, ref.ID)
			continue
		}
		areaID, err := db.resolveStudyArea(ref.StudyArea)
		if err != nil {
			return nil, err
		}
		rec, ok := db.disciplineByName(areaID, ref.Name)
		if !ok {
			rec = &disciplineRecord{
				ID:          uuid.NewString(),
				Name:        ref.Name,
				Description: ref.Description,
				StudyAreaID: areaID,
				CreatedAt:   now(),
			}
			db.disciplines[rec.ID] = rec
		}
		ids = appendMissing(ids, rec.ID)
	}
	return ids, nil
}

// Study areas

func (repo *disciplineRepository) CreateStudyArea(_ context.Context, sa discipline.StudyArea) (discipline.StudyArea, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.studyAreaByName(sa.Name); ok {
		return discipline.StudyArea{}, discipline.ErrStudyAreaExists
	}
	sa.ID = uuid.NewString()
	repo.db.studyAreas[sa.ID] = &sa
	return sa, nil
}

func (repo *disciplineRepository) GetStudyArea(_ context.Context, id string) (discipline.StudyArea, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sa, ok := repo.db.studyAreas[id]; ok {
		return *sa, nil
	}
	return discipline.StudyArea{}, discipline.ErrStudyAreaNotFound
}

func (repo *disciplineRepository) QueryStudyAreas(_ context.Context, search string) ([]discipline.StudyArea, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	areas := make([]discipline.StudyArea, 0, len(repo.db.studyAreas))
	for _, sa := range repo.db.studyAreas {
		if search == "" || containsFold(sa.Name, search) {
			areas = append(areas, *sa)
		}
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas, nil
}

func (repo *disciplineRepository) UpdateStudyArea(_ context.Context, sa discipline.StudyArea) (discipline.StudyArea, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.studyAreas[sa.ID]; !ok {
		return discipline.StudyArea{}, discipline.ErrStudyAreaNotFound
	}
	if other, ok := repo.db.studyAreaByName(sa.Name); ok && other.ID != sa.ID {
		return discipline.StudyArea{}, discipline.ErrStudyAreaExists
	}
	repo.db.studyAreas[sa.ID] = &sa
	return sa, nil
}

func (repo *disciplineRepository) DeleteStudyArea(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.studyAreas[id]; !ok {
		return discipline.ErrStudyAreaNotFound
	}
	delete(repo.db.studyAreas, id)
	for did, d := range repo.db.disciplines {
		if d.StudyAreaID == id {
			repo.db.deleteDiscipline(did)
		}
	}
	return nil
}

// Disciplines

func (repo *disciplineRepository) CreateDiscipline(_ context.Context, d discipline.Discipline, area discipline.StudyAreaRef) (discipline.Discipline, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	areaID, err := repo.db.lookupStudyArea(area)
	if err != nil {
		return discipline.Discipline{}, err
	}
	if _, ok := repo.db.disciplineByName(areaID, d.Name); ok && areaID != "" {
		return discipline.Discipline{}, discipline.ErrDisciplineExists
	}

	if areaID, err = repo.db.resolveStudyArea(area); err != nil {
		return discipline.Discipline{}, err
	}
	rec := &disciplineRecord{
		ID:          uuid.NewString(),
		Name:        d.Name,
		Description: d.Description,
		StudyAreaID: areaID,
		CreatedAt:   d.CreatedAt,
	}
	repo.db.disciplines[rec.ID] = rec
	return repo.db.discipline(rec), nil
}

func (repo *disciplineRepository) GetDiscipline(_ context.Context, id string) (discipline.Discipline, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.disciplines[id]; ok {
		return repo.db.discipline(rec), nil
	}
	return discipline.Discipline{}, discipline.ErrNotFound
}

func (repo *disciplineRepository) QueryDisciplines(_ context.Context, filter discipline.QueryFilter) ([]discipline.Discipline, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ds := make([]discipline.Discipline, 0, len(repo.db.disciplines))
	for _, rec := range repo.db.disciplines {
		if filter.StudyArea != "" && rec.StudyAreaID != filter.StudyArea {
			continue
		}
		if filter.Search != "" && !containsFold(rec.Name, filter.Search) {
			continue
		}
		ds = append(ds, repo.db.discipline(rec))
	}
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Name != ds[j].Name {
			return ds[i].Name < ds[j].Name
		}
		return ds[i].StudyArea.Name < ds[j].StudyArea.Name
	})
	return ds, nil
}

func (repo *disciplineRepository) UpdateDiscipline(_ context.Context, d discipline.Discipline, area *discipline.StudyAreaRef) (discipline.Discipline, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.disciplines[d.ID]
	if !ok {
		return discipline.Discipline{}, discipline.ErrNotFound
	}
	areaID := rec.StudyAreaID
	if area != nil {
		var err error
		if areaID, err = repo.db.lookupStudyArea(*area); err != nil {
			return discipline.Discipline{}, err
		}
	}
	if other, ok := repo.db.disciplineByName(areaID, d.Name); ok && areaID != "" && other.ID != d.ID {
		return discipline.Discipline{}, discipline.ErrDisciplineExists
	}
	if area != nil && areaID == "" {
		areaID, _ = repo.db.resolveStudyArea(*area)
	}
	rec.Name = d.Name
	rec.Description = d.Description
	rec.StudyAreaID = areaID
	return repo.db.discipline(rec), nil
}

func (repo *disciplineRepository) DeleteDiscipline(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.disciplines[id]; !ok {
		return discipline.ErrNotFound
	}
	repo.db.deleteDiscipline(id)
	return nil
}
