package inmemdb

import (
	"context"
	"sort"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

func (repo *assessmentRepository) assignments(kind assessment.Kind) (map[int]assessment.Assignment, error) {
	tbl, ok := repo.db.t.assignments[kind]
	if !ok {
		return nil, assessment.ErrInvalidKind
	}
	return tbl, nil
}

func (repo *assessmentRepository) submissions(kind assessment.Kind) (map[int]assessment.Submission, error) {
	tbl, ok := repo.db.t.submissions[kind]
	if !ok {
		return nil, assessment.ErrInvalidKind
	}
	return tbl, nil
}

func (repo *assessmentRepository) CreateAssignment(_ context.Context, a assessment.Assignment) (assessment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tbl, err := repo.assignments(a.Kind)
	if err != nil {
		return assessment.Assignment{}, err
	}
	a.ID = repo.db.nextID(string(a.Kind))
	tbl[a.ID] = a
	return a, nil
}

func (repo *assessmentRepository) GetAssignment(_ context.Context, kind assessment.Kind, id int) (assessment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tbl, err := repo.assignments(kind)
	if err != nil {
		return assessment.Assignment{}, err
	}
	if a, ok := tbl[id]; ok {
		return a, nil
	}
	return assessment.Assignment{}, core.NewNotFoundError(string(kind), id)
}

func (repo *assessmentRepository) QueryAssignments(_ context.Context, kind assessment.Kind, filter assessment.Filter) ([]assessment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tbl, err := repo.assignments(kind)
	if err != nil {
		return nil, err
	}
	res := make([]assessment.Assignment, 0, len(tbl))
	for _, a := range tbl {
		if filter.CourseID != nil && a.CourseID != *filter.CourseID {
			continue
		}
		if filter.ClassID != nil && (a.ClassID == nil || *a.ClassID != *filter.ClassID) {
			continue
		}
		if len(filter.CourseIDs) > 0 && !containsInt(filter.CourseIDs, a.CourseID) {
			continue
		}
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		if c := cmpTime(res[i].StartAt, res[j].StartAt); c != 0 {
			return c > 0
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

func (repo *assessmentRepository) UpdateAssignment(_ context.Context, a assessment.Assignment) (assessment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tbl, err := repo.assignments(a.Kind)
	if err != nil {
		return assessment.Assignment{}, err
	}
	if _, ok := tbl[a.ID]; !ok {
		return assessment.Assignment{}, core.NewNotFoundError(string(a.Kind), a.ID)
	}
	tbl[a.ID] = a
	return a, nil
}

// DeleteAssignments also deletes the submissions of the deleted assignments.
func (repo *assessmentRepository) DeleteAssignments(_ context.Context, kind assessment.Kind, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tbl, err := repo.assignments(kind)
	if err != nil {
		return 0, err
	}
	subs, _ := repo.submissions(kind)
	var n int
	for _, id := range ids {
		if _, ok := tbl[id]; !ok {
			continue
		}
		delete(tbl, id)
		n++
		for sid, sub := range subs {
			if sub.AssignmentID == id {
				delete(subs, sid)
			}
		}
	}
	return n, nil
}

func (repo *assessmentRepository) CreateSubmission(_ context.Context, kind assessment.Kind, sub assessment.Submission) (assessment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tbl, err := repo.submissions(kind)
	if err != nil {
		return assessment.Submission{}, err
	}
	for _, existing := range tbl {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			return assessment.Submission{}, core.NewConflictError("submission", sub.StudentID)
		}
	}
	sub.ID = repo.db.nextID(string(kind) + "_submissions")
	sub.Version = 1
	tbl[sub.ID] = sub
	return sub, nil
}

func (repo *assessmentRepository) GetSubmission(_ context.Context, kind assessment.Kind, id int) (assessment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tbl, err := repo.submissions(kind)
	if err != nil {
		return assessment.Submission{}, err
	}
	if sub, ok := tbl[id]; ok {
		return sub, nil
	}
	return assessment.Submission{}, assessment.ErrSubmissionNotFound
}

func (repo *assessmentRepository) GetStudentSubmission(_ context.Context, kind assessment.Kind, assignmentID, studentID int) (assessment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tbl, err := repo.submissions(kind)
	if err != nil {
		return assessment.Submission{}, err
	}
	for _, sub := range tbl {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return sub, nil
		}
	}
	return assessment.Submission{}, assessment.ErrSubmissionNotFound
}

func (repo *assessmentRepository) QuerySubmissions(_ context.Context, kind assessment.Kind, filter assessment.SubmissionFilter) ([]assessment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tbl, err := repo.submissions(kind)
	if err != nil {
		return nil, err
	}
	subs := make([]assessment.Submission, 0, len(tbl))
	for _, sub := range tbl {
		if filter.AssignmentID != nil && sub.AssignmentID != *filter.AssignmentID {
			continue
		}
		if filter.StudentID != nil && sub.StudentID != *filter.StudentID {
			continue
		}
		if filter.IDs != nil && !containsInt(filter.IDs, sub.ID) {
			continue
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (repo *assessmentRepository) UpdateSubmission(_ context.Context, kind assessment.Kind, sub assessment.Submission) (assessment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fail("UpdateSubmission"); err != nil {
		return assessment.Submission{}, err
	}
	tbl, err := repo.submissions(kind)
	if err != nil {
		return assessment.Submission{}, err
	}
	orig, ok := tbl[sub.ID]
	if !ok {
		return assessment.Submission{}, assessment.ErrSubmissionNotFound
	}
	if orig.Version != sub.Version {
		return assessment.Submission{}, core.NewConflictError("submission", sub.ID)
	}
	sub.Version++
	tbl[sub.ID] = sub
	return sub, nil
}
