package core

import (
	"context"

	"github.com/volatiletech/strmangle"
)

// Transactor runs fn inside a single database transaction.
// Every repository call made with the ctx passed to fn joins that transaction.
// Calling WithinTx with a ctx that already carries a transaction reuses it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Column() + " " + direction
}

// Column returns the snake_cased column name of the ordering field.
func (ord DBOrdering) Column() string {
	return strmangle.SnakeCase(ord.Field)
}

// FilterOrderings drops orderings on columns not present in allowed.
func FilterOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	res := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if strmangle.SetInclude(ord.Column(), allowed) {
			res = append(res, ord)
		}
	}
	return res
}

// Page limits a query. A zero Limit means no limit.
type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (p Page) Apply(n int) (start, end int) {
	if p.Offset >= n {
		return n, n
	}
	start = p.Offset
	if start < 0 {
		start = 0
	}
	end = n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}
