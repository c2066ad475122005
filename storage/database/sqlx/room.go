package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/room"
	"github.com/trezcool/sistira/core/user"
)

const roomSelect = `SELECT r.id, r.title, r.description, r.access_code, r.created_at, r.updated_at,
	u.id AS owner_id, u.name AS owner_name, u.email AS owner_email
	FROM rooms r JOIN users u ON u.id = r.owner_id`

type roomRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	AccessCode  string    `db:"access_code"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	OwnerID     string    `db:"owner_id"`
	OwnerName   string    `db:"owner_name"`
	OwnerEmail  string    `db:"owner_email"`
}

func (row roomRow) toRoom() room.Room {
	return room.Room{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		AccessCode:  row.AccessCode,
		Owner:       user.Summary{ID: row.OwnerID, Name: row.OwnerName, Email: row.OwnerEmail},
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func examSummaryIDs(exams []exam.Summary) []string {
	ids := make([]string, 0, len(exams))
	for _, e := range exams {
		ids = append(ids, e.ID)
	}
	return ids
}

type roomRepository struct {
	db *sqlx.DB
}

var _ room.Repository = (*roomRepository)(nil) // interface compliance check

func NewRoomRepository(db *sqlx.DB) *roomRepository {
	return &roomRepository{db: db}
}

func loadRoomExams(ctx context.Context, q sqlx.QueryerContext, roomIDs []string) (map[string][]exam.Summary, error) {
	var rows []struct {
		RoomID   string `db:"room_id"`
		ID       string `db:"id"`
		Title    string `db:"title"`
		Duration int    `db:"duration"`
	}
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT re.room_id, e.id, e.title, e.duration
		FROM room_exams re JOIN exams e ON e.id = re.exam_id
		WHERE re.room_id = ANY($1::uuid[]) ORDER BY e.title`,
		pq.Array(roomIDs))
	if err != nil {
		return nil, errors.Wrap(err, "loading room exams")
	}
	res := make(map[string][]exam.Summary, len(roomIDs))
	for _, row := range rows {
		res[row.RoomID] = append(res[row.RoomID], exam.Summary{ID: row.ID, Title: row.Title, Duration: row.Duration})
	}
	return res, nil
}

func (repo roomRepository) hydrate(ctx context.Context, q sqlx.QueryerContext, rooms []room.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	collabs, err := loadMembers(ctx, q, "room_collaborators", "room_id", ids)
	if err != nil {
		return err
	}
	participants, err := loadMembers(ctx, q, "room_participants", "room_id", ids)
	if err != nil {
		return err
	}
	exams, err := loadRoomExams(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range rooms {
		r := &rooms[i]
		if r.Collaborators = collabs[r.ID]; r.Collaborators == nil {
			r.Collaborators = []user.Summary{}
		}
		if r.Participants = participants[r.ID]; r.Participants == nil {
			r.Participants = []user.Summary{}
		}
		if r.Exams = exams[r.ID]; r.Exams == nil {
			r.Exams = []exam.Summary{}
		}
	}
	return nil
}

func (repo roomRepository) getRoom(ctx context.Context, q sqlx.QueryerContext, cond string, arg interface{}) (room.Room, error) {
	var row roomRow
	if err := sqlx.GetContext(ctx, q, &row, roomSelect+" WHERE "+cond, arg); err != nil {
		return room.Room{}, trapNoRowsErr(err, room.ErrNotFound, "finding room")
	}
	rooms := []room.Room{row.toRoom()}
	if err := repo.hydrate(ctx, q, rooms); err != nil {
		return room.Room{}, err
	}
	return rooms[0], nil
}

func (repo roomRepository) writeLinks(ctx context.Context, tx *sqlx.Tx, r room.Room) error {
	if err := replaceLinks(ctx, tx, "room_collaborators", "room_id", "user_id", r.ID, summaryIDs(r.Collaborators), false); err != nil {
		return err
	}
	if err := replaceLinks(ctx, tx, "room_participants", "room_id", "user_id", r.ID, summaryIDs(r.Participants), false); err != nil {
		return err
	}
	return replaceLinks(ctx, tx, "room_exams", "room_id", "exam_id", r.ID, examSummaryIDs(r.Exams), false)
}

func (repo roomRepository) CreateRoom(ctx context.Context, r room.Room) (room.Room, error) {
	r.ID = uuid.NewString()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rooms (id, title, description, access_code, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, r.Title, r.Description, r.AccessCode, r.Owner.ID, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
		if err != nil {
			if isUniqueViolation(err, "rooms_access_code_key") {
				return room.ErrAccessCodeExists
			}
			return errors.Wrap(referenceError(err), "inserting room")
		}
		if err = repo.writeLinks(ctx, tx, r); err != nil {
			return err
		}
		r, err = repo.getRoom(ctx, tx, "r.id = $1", r.ID)
		return err
	})
	if err != nil {
		return room.Room{}, err
	}
	return r, nil
}

func (repo roomRepository) GetRoom(ctx context.Context, id string) (room.Room, error) {
	if !validID(id) {
		return room.Room{}, room.ErrNotFound
	}
	return repo.getRoom(ctx, repo.db, "r.id = $1", id)
}

func (repo roomRepository) GetRoomByAccessCode(ctx context.Context, code string) (room.Room, error) {
	return repo.getRoom(ctx, repo.db, "r.access_code = $1", code)
}

// roomWhere returns the conditions of filter, or false when filter cannot match anything.
func roomWhere(filter room.QueryFilter) (w where, ok bool) {
	if filter.MemberID != "" {
		if !validID(filter.MemberID) {
			return w, false
		}
		w.add(`(r.owner_id = ?
			OR EXISTS (SELECT 1 FROM room_collaborators c WHERE c.room_id = r.id AND c.user_id = ?)
			OR EXISTS (SELECT 1 FROM room_participants p WHERE p.room_id = r.id AND p.user_id = ?))`,
			filter.MemberID, filter.MemberID, filter.MemberID)
	}
	if filter.Search != "" {
		w.add("r.title ILIKE ?", "%"+filter.Search+"%")
	}
	return w, true
}

func (repo roomRepository) QueryRooms(ctx context.Context, filter room.QueryFilter) ([]room.Room, error) {
	w, ok := roomWhere(filter)
	if !ok {
		return []room.Room{}, nil
	}
	var rows []roomRow
	q := w.build(repo.db, roomSelect, "r.created_at DESC")
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	rooms := make([]room.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.toRoom())
	}
	if err := repo.hydrate(ctx, repo.db, rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (repo roomRepository) CountRooms(ctx context.Context, filter room.QueryFilter) (int, error) {
	w, ok := roomWhere(filter)
	if !ok {
		return 0, nil
	}
	var n int
	q := w.build(repo.db, "SELECT count(*) FROM rooms r", "")
	err := sqlx.GetContext(ctx, repo.db, &n, q, w.args...)
	return n, errors.Wrap(err, "counting rooms")
}

func (repo roomRepository) UpdateRoom(ctx context.Context, r room.Room) (room.Room, error) {
	if !validID(r.ID) {
		return room.Room{}, room.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE rooms SET title = $2, description = $3, updated_at = $4 WHERE id = $1",
			r.ID, r.Title, r.Description, r.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "updating room")
		}
		if err = checkAffected(res, room.ErrNotFound); err != nil {
			return err
		}
		if err = repo.writeLinks(ctx, tx, r); err != nil {
			return err
		}
		r, err = repo.getRoom(ctx, tx, "r.id = $1", r.ID)
		return err
	})
	if err != nil {
		return room.Room{}, err
	}
	return r, nil
}

func (repo roomRepository) DeleteRoom(ctx context.Context, id string) error {
	if !validID(id) {
		return room.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting room")
	}
	return checkAffected(res, room.ErrNotFound)
}

func (repo roomRepository) AddParticipant(ctx context.Context, id, userID string) (room.Room, error) {
	if !validID(id) {
		return room.Room{}, room.ErrNotFound
	}
	var r room.Room
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := appendLinks(ctx, tx, "room_participants", "room_id", "user_id", id, []string{userID}, false); err != nil {
			return err
		}
		var err error
		r, err = repo.getRoom(ctx, tx, "r.id = $1", id)
		return err
	})
	if err != nil {
		return room.Room{}, err
	}
	return r, nil
}
