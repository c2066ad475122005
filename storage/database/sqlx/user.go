package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/user"
)

const userColumns = "id, name, username, email, password_hash, is_admin, is_active, created_at, updated_at, last_login"

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	IsAdmin      bool        `db:"is_admin"`
	IsActive     bool        `db:"is_active"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		IsAdmin:      usr.IsAdmin,
		IsActive:     usr.IsActive,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.TimeFromPtr(usr.LastLogin),
	}
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		IsAdmin:      row.IsAdmin,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		t := row.LastLogin.Time.UTC()
		usr.LastLogin = &t
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// uniquenessErr maps users unique constraint violations to user errors.
func (repo userRepository) uniquenessErr(err error, msg string) error {
	switch {
	case isUniqueViolation(err, "users_email_key"):
		return user.ErrEmailExists
	case isUniqueViolation(err, "users_username_key"):
		return user.ErrUsernameExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	var rows []userRow
	err := sqlx.SelectContext(ctx, repo.db, &rows,
		`SELECT `+userColumns+` FROM users
		WHERE (email = $1 OR (username IS NOT NULL AND username = $2)) AND NOT (id = ANY($3::uuid[]))`,
		email, null.NewString(username, username != ""), pq.Array(validIDs(excludedIDs)))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if row.Email == email {
			return user.ErrEmailExists
		}
	}
	if len(rows) > 0 {
		return user.ErrUsernameExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	row := toUserRow(usr)
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :password_hash, :is_admin, :is_active, :created_at, :updated_at, :last_login)`,
		row)
	if err != nil {
		return user.User{}, repo.uniquenessErr(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	err := sqlx.GetContext(ctx, repo.db, &row, w.build(repo.db, "SELECT "+userColumns+" FROM users", "")+" LIMIT 1", w.args...)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	var w where
	if filter.ID != "" {
		if !validID(filter.ID) {
			return []user.User{}, nil
		}
		w.add("id = ?", filter.ID)
	}
	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if filter.IsAdmin != nil {
		w.add("is_admin = ?", *filter.IsAdmin)
	}

	var rows []userRow
	q := w.build(repo.db, "SELECT "+userColumns+" FROM users", orderingClause(orderings, "created_at DESC"))
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := toUserRow(usr)
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE users SET name = :name, username = :username, email = :email, password_hash = :password_hash,
		is_admin = :is_admin, is_active = :is_active, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		row)
	if err != nil {
		return user.User{}, repo.uniquenessErr(err, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return row.toUser(), nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at, id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return checkAffected(res, user.ErrNotFound)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1::uuid[])", pq.Array(validIDs(ids)))
	return errors.Wrap(err, "deleting users")
}

// loadMembers returns the user summaries linked to each parent id through the join table.
func loadMembers(ctx context.Context, q sqlx.QueryerContext, table, parentCol string, parentIDs []string) (map[string][]user.Summary, error) {
	var rows []struct {
		ParentID string `db:"parent_id"`
		ID       string `db:"id"`
		Name     string `db:"name"`
		Email    string `db:"email"`
	}
	query := `SELECT l.` + parentCol + ` AS parent_id, u.id, u.name, u.email
		FROM ` + table + ` l JOIN users u ON u.id = l.user_id
		WHERE l.` + parentCol + ` = ANY($1::uuid[]) ORDER BY u.name, u.email`
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(parentIDs)); err != nil {
		return nil, errors.Wrap(err, "loading "+table)
	}
	res := make(map[string][]user.Summary, len(parentIDs))
	for _, row := range rows {
		res[row.ParentID] = append(res[row.ParentID], user.Summary{ID: row.ID, Name: row.Name, Email: row.Email})
	}
	return res, nil
}

func summaryIDs(summaries []user.Summary) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}
