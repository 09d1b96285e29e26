// Package inmemdb keeps every repository in process memory. Used by tests.
package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

type (
	tables struct {
		users         map[string]user.User
		classes       map[int]school.Class
		courses       map[int]school.Course
		students      map[int]school.Student
		teachers      map[int]school.Teacher
		scores        map[int]score.Score
		assignments   map[assessment.Kind]map[int]assessment.Assignment
		submissions   map[assessment.Kind]map[int]assessment.Submission
		notifications map[int]notification.Notification
		seq           map[string]int
	}

	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex
		t    tables

		// FailOn makes the named operation fail with the given error. Tests only.
		FailOn map[string]error
	}
)

func newTables() tables {
	return tables{
		users:         make(map[string]user.User),
		classes:       make(map[int]school.Class),
		courses:       make(map[int]school.Course),
		students:      make(map[int]school.Student),
		teachers:      make(map[int]school.Teacher),
		scores:        make(map[int]score.Score),
		notifications: make(map[int]notification.Notification),
		assignments: map[assessment.Kind]map[int]assessment.Assignment{
			assessment.KindExam:     {},
			assessment.KindExercise: {},
		},
		submissions: map[assessment.Kind]map[int]assessment.Submission{
			assessment.KindExam:     {},
			assessment.KindExercise: {},
		},
		seq: make(map[string]int),
	}
}

func Open() *DB {
	return &DB{t: newTables(), FailOn: make(map[string]error)}
}

// snapshot copies every table. Values are copied, pointers inside them are never mutated in place.
func (t tables) snapshot() tables {
	cp := tables{
		users:         make(map[string]user.User, len(t.users)),
		classes:       make(map[int]school.Class, len(t.classes)),
		courses:       make(map[int]school.Course, len(t.courses)),
		students:      make(map[int]school.Student, len(t.students)),
		teachers:      make(map[int]school.Teacher, len(t.teachers)),
		scores:        make(map[int]score.Score, len(t.scores)),
		notifications: make(map[int]notification.Notification, len(t.notifications)),
		assignments:   make(map[assessment.Kind]map[int]assessment.Assignment, len(t.assignments)),
		submissions:   make(map[assessment.Kind]map[int]assessment.Submission, len(t.submissions)),
		seq:           make(map[string]int, len(t.seq)),
	}
	for k, v := range t.users {
		cp.users[k] = v
	}
	for k, v := range t.classes {
		cp.classes[k] = v
	}
	for k, v := range t.courses {
		cp.courses[k] = v
	}
	for k, v := range t.students {
		cp.students[k] = v
	}
	for k, v := range t.teachers {
		cp.teachers[k] = v
	}
	for k, v := range t.scores {
		cp.scores[k] = v
	}
	for k, v := range t.notifications {
		cp.notifications[k] = v
	}
	for kind, tbl := range t.assignments {
		cp.assignments[kind] = make(map[int]assessment.Assignment, len(tbl))
		for k, v := range tbl {
			cp.assignments[kind][k] = v
		}
	}
	for kind, tbl := range t.submissions {
		cp.submissions[kind] = make(map[int]assessment.Submission, len(tbl))
		for k, v := range tbl {
			cp.submissions[kind][k] = v
		}
	}
	for k, v := range t.seq {
		cp.seq[k] = v
	}
	return cp
}

func (db *DB) nextID(table string) int {
	db.t.seq[table]++
	return db.t.seq[table]
}

func (db *DB) fail(op string) error {
	if db.FailOn == nil {
		return nil
	}
	return db.FailOn[op]
}

// Count returns the number of rows of a table, for assertions in tests.
func (db *DB) Count(table string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	switch table {
	case "users":
		return len(db.t.users)
	case "classes":
		return len(db.t.classes)
	case "courses":
		return len(db.t.courses)
	case "students":
		return len(db.t.students)
	case "teachers":
		return len(db.t.teachers)
	case "scores":
		return len(db.t.scores)
	case "notifications":
		return len(db.t.notifications)
	case "exams":
		return len(db.t.assignments[assessment.KindExam])
	case "exercises":
		return len(db.t.assignments[assessment.KindExercise])
	case "exam_submissions":
		return len(db.t.submissions[assessment.KindExam])
	case "exercise_submissions":
		return len(db.t.submissions[assessment.KindExercise])
	}
	return 0
}

// Notifications returns every stored notification in creation order, for assertions in tests.
func (db *DB) Notifications() []notification.Notification {
	db.mu.RLock()
	defer db.mu.RUnlock()

	notes := make([]notification.Notification, 0, len(db.t.notifications))
	for _, n := range db.t.notifications {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}

type txKey struct{}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil)

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

// WithinTx serialises transactions and restores every table when fn fails.
func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.mu.RLock()
	snap := t.db.t.snapshot()
	t.db.mu.RUnlock()

	rollback := func() {
		t.db.mu.Lock()
		t.db.t = snap
		t.db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
	}
	return err
}
