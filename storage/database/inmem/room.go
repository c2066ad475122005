package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/room"
)

type roomRepository struct {
	db *DB
}

var _ room.Repository = (*roomRepository)(nil) // interface compliance check

func NewRoomRepository(db *DB) room.Repository {
	return &roomRepository{db: db}
}

func (db *DB) room(rec *roomRecord) room.Room {
	r := room.Room{
		ID:            rec.ID,
		Title:         rec.Title,
		Description:   rec.Description,
		AccessCode:    rec.AccessCode,
		Collaborators: db.userSummaries(rec.CollabIDs),
		Participants:  db.userSummaries(rec.ParticipantIDs),
		Exams:         make([]exam.Summary, 0, len(rec.ExamIDs)),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if usr, ok := db.users[rec.OwnerID]; ok {
		r.Owner = usr.Summary()
	}
	for _, id := range rec.ExamIDs {
		if e, ok := db.exams[id]; ok {
			r.Exams = append(r.Exams, exam.Summary{ID: e.ID, Title: e.Title, Duration: e.Duration})
		}
	}
	sort.SliceStable(r.Exams, func(i, j int) bool { return r.Exams[i].Title < r.Exams[j].Title })
	return r
}

func examIDs(exams []exam.Summary) []string {
	ids := make([]string, 0, len(exams))
	for _, e := range exams {
		ids = append(ids, e.ID)
	}
	return ids
}

func (repo *roomRepository) CreateRoom(_ context.Context, r room.Room) (room.Room, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.rooms {
		if other.AccessCode == r.AccessCode {
			return room.Room{}, room.ErrAccessCodeExists
		}
	}
	rec := &roomRecord{
		ID:             uuid.NewString(),
		Title:          r.Title,
		Description:    r.Description,
		AccessCode:     r.AccessCode,
		OwnerID:        r.Owner.ID,
		CollabIDs:      summaryIDs(r.Collaborators),
		ParticipantIDs: summaryIDs(r.Participants),
		ExamIDs:        examIDs(r.Exams),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	repo.db.rooms[rec.ID] = rec
	return repo.db.room(rec), nil
}

func (repo *roomRepository) GetRoom(_ context.Context, id string) (room.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.rooms[id]; ok {
		return repo.db.room(rec), nil
	}
	return room.Room{}, room.ErrNotFound
}

func (repo *roomRepository) GetRoomByAccessCode(_ context.Context, code string) (room.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, rec := range repo.db.rooms {
		if rec.AccessCode == code {
			return repo.db.room(rec), nil
		}
	}
	return room.Room{}, room.ErrNotFound
}

func matchRoom(rec *roomRecord, filter room.QueryFilter) bool {
	if filter.MemberID != "" && rec.OwnerID != filter.MemberID &&
		!contains(rec.CollabIDs, filter.MemberID) && !contains(rec.ParticipantIDs, filter.MemberID) {
		return false
	}
	if filter.Search != "" && !containsFold(rec.Title, filter.Search) {
		return false
	}
	return true
}

func (repo *roomRepository) QueryRooms(_ context.Context, filter room.QueryFilter) ([]room.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rooms := make([]room.Room, 0)
	for _, rec := range repo.db.rooms {
		if !matchRoom(rec, filter) {
			continue
		}
		rooms = append(rooms, repo.db.room(rec))
	}
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

func (repo *roomRepository) CountRooms(_ context.Context, filter room.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	n := 0
	for _, rec := range repo.db.rooms {
		if matchRoom(rec, filter) {
			n++
		}
	}
	return n, nil
}

func (repo *roomRepository) UpdateRoom(_ context.Context, r room.Room) (room.Room, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.rooms[r.ID]
	if !ok {
		return room.Room{}, room.ErrNotFound
	}
	rec.Title = r.Title
	rec.Description = r.Description
	rec.CollabIDs = summaryIDs(r.Collaborators)
	rec.ParticipantIDs = summaryIDs(r.Participants)
	rec.ExamIDs = examIDs(r.Exams)
	rec.UpdatedAt = r.UpdatedAt
	return repo.db.room(rec), nil
}

func (repo *roomRepository) DeleteRoom(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rooms[id]; !ok {
		return room.ErrNotFound
	}
	delete(repo.db.rooms, id)
	return nil
}

func (repo *roomRepository) AddParticipant(_ context.Context, id, userID string) (room.Room, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.rooms[id]
	if !ok {
		return room.Room{}, room.ErrNotFound
	}
	rec.ParticipantIDs = appendMissing(rec.ParticipantIDs, userID)
	return repo.db.room(rec), nil
}
