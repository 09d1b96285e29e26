// Package sqlxrepos implements the repositories over PostgreSQL.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/storage/database"
)

const uniqueViolation = "23505"

type repo struct {
	db *sqlx.DB
}

func (r repo) exec(ctx context.Context) sqlx.ExtContext {
	return database.Executor(ctx, r.db)
}

// get runs a `?` query expanding slice args and scans the single row into dest.
func (r repo) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	exec := r.exec(ctx)
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

// selectAll runs a `?` query expanding slice args and scans every row into dest.
func (r repo) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	exec := r.exec(ctx)
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

// run executes a `?` statement expanding slice args and returns the number of affected rows.
func (r repo) run(ctx context.Context, query string, args ...interface{}) (int, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	exec := r.exec(ctx)
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// trapNoRowsErr maps "no rows" to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueConstraint returns the violated unique constraint, if any.
func uniqueConstraint(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) search(val string, cols ...string) {
	if val == "" {
		return
	}
	like := "%" + val + "%"
	ors := make([]string, 0, len(cols))
	for _, col := range cols {
		ors = append(ors, col+" ILIKE ?")
		w.args = append(w.args, like)
	}
	w.clauses = append(w.clauses, "("+strings.Join(ors, " OR ")+")")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// orderBy builds an ORDER BY clause from the allowed orderings, falling back to def.
func orderBy(ordering []core.DBOrdering, def string, allowed ...string) string {
	ordering = core.FilterOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
