package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// withTx runs fn in a transaction, rolled back if fn fails.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}

// pqError returns the *pq.Error cause of err, if any.
func pqError(err error) (*pq.Error, bool) {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return pqErr, ok
}

// isUniqueViolation reports whether err violates the unique constraint (or index) named constraint.
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := pqError(err)
	return ok && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}

// referenceError maps foreign key violations, raised when a referenced row vanished
// between validation and write, to a validation error.
func referenceError(err error) error {
	if pqErr, ok := pqError(err); ok && pqErr.Code == foreignKeyViolation {
		return core.NewValidationError(errors.New("a referenced resource does not exist: " + pqErr.Constraint))
	}
	return err
}

// trapNoRowsErr maps psql "no rows" err to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// checkAffected returns notFound when res affected no rows.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validIDs drops the ids that are not UUIDs: they match no row.
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// getOrCreate runs insert (which must use ON CONFLICT DO NOTHING) then returns the id selected by lookup.
// It is the idempotent "get or create by natural key" used for reference data.
func getOrCreate(ctx context.Context, q sqlx.ExtContext, insert string, insertArgs []interface{}, lookup string, lookupArgs ...interface{}) (string, error) {
	if _, err := q.ExecContext(ctx, insert, insertArgs...); err != nil {
		return "", errors.Wrap(err, "inserting")
	}
	var id string
	if err := sqlx.GetContext(ctx, q, &id, lookup, lookupArgs...); err != nil {
		return "", errors.Wrap(err, "looking up")
	}
	return id, nil
}

// replaceLinks replaces the rows of a join table linking parentID to childIDs.
// When positioned, the index of each child is stored in the position column.
func replaceLinks(ctx context.Context, tx sqlx.ExtContext, table, parentCol, childCol, parentID string, childIDs []string, positioned bool) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, parentCol), parentID); err != nil {
		return errors.Wrap(err, "deleting "+table)
	}
	return appendLinks(ctx, tx, table, parentCol, childCol, parentID, childIDs, positioned)
}

// appendLinks links parentID to childIDs, ignoring existing links.
// Positions continue after the highest existing one.
func appendLinks(ctx context.Context, tx sqlx.ExtContext, table, parentCol, childCol, parentID string, childIDs []string, positioned bool) error {
	var q string
	if positioned {
		q = fmt.Sprintf(
			`INSERT INTO %[1]s (%[2]s, %[3]s, position)
			SELECT $1::uuid, $2::uuid, COALESCE(MAX(position) + 1, 0) FROM %[1]s WHERE %[2]s = $1::uuid
			ON CONFLICT DO NOTHING`,
			table, parentCol, childCol)
	} else {
		q = fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING", table, parentCol, childCol)
	}
	for _, id := range childIDs {
		if _, err := tx.ExecContext(ctx, q, parentID, id); err != nil {
			return errors.Wrap(referenceError(err), "inserting "+table)
		}
	}
	return nil
}

// where accumulates SQL conditions written with `?` placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// build appends the conditions and orderings to query and rebinds it for q.
func (w *where) build(q sqlx.ExtContext, query string, orderBy string) string {
	if len(w.conds) > 0 {
		query += " WHERE " + strings.Join(w.conds, " AND ")
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	return q.Rebind(query)
}

func orderingClause(orderings []core.DBOrdering, dflt string) string {
	if len(orderings) == 0 {
		return dflt
	}
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		clauses = append(clauses, ord.String())
	}
	return strings.Join(clauses, ", ")
}
