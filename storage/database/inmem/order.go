package inmemdb

import (
	"strings"
	"time"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

type comparator func(i, j int) int

// lessFor builds a sort.Slice less func from ordering, falling back to def.
func lessFor(ordering []core.DBOrdering, def core.DBOrdering, cols map[string]comparator) func(i, j int) bool {
	allowed := make([]string, 0, len(cols))
	for col := range cols {
		allowed = append(allowed, col)
	}
	ordering = core.FilterOrderings(ordering, allowed...)
	ordering = append(ordering, def)
	return func(i, j int) bool {
		for _, ord := range ordering {
			c := cols[ord.Column()](i, j)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}
}

func cmpString(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpIntPtr(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmpInt(*a, *b)
}

func cmpTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func containsInt(ids []int, id int) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
