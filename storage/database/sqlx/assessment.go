package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
)

var (
	assignmentTables = map[assessment.Kind]string{
		assessment.KindExam:     "exams",
		assessment.KindExercise: "exercises",
	}
	submissionTables = map[assessment.Kind]string{
		assessment.KindExam:     "exam_submissions",
		assessment.KindExercise: "exercise_submissions",
	}
)

func assignmentTable(kind assessment.Kind) (string, error) {
	if t, ok := assignmentTables[kind]; ok {
		return t, nil
	}
	return "", assessment.ErrInvalidKind
}

func submissionTable(kind assessment.Kind) (string, error) {
	if t, ok := submissionTables[kind]; ok {
		return t, nil
	}
	return "", assessment.ErrInvalidKind
}

type assignmentRow struct {
	ID          int          `db:"id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	CourseID    int          `db:"course_id"`
	ClassID     null.Int     `db:"class_id"`
	StartAt     time.Time    `db:"start_at"`
	EndAt       time.Time    `db:"end_at"`
	MaxScore    null.Float64 `db:"max_score"`
	Attachment  null.String  `db:"attachment"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (row assignmentRow) assignment(kind assessment.Kind) assessment.Assignment {
	return assessment.Assignment{
		ID:          row.ID,
		Kind:        kind,
		Title:       row.Title,
		Description: row.Description,
		CourseID:    row.CourseID,
		ClassID:     intPtr(row.ClassID),
		StartAt:     row.StartAt.UTC(),
		EndAt:       row.EndAt.UTC(),
		MaxScore:    row.MaxScore.Ptr(),
		Attachment:  row.Attachment.String,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type submissionRow struct {
	ID           int          `db:"id"`
	AssignmentID int          `db:"assignment_id"`
	StudentID    int          `db:"student_id"`
	Score        null.Float64 `db:"score"`
	AnswerFile   null.String  `db:"answer_file"`
	Description  string       `db:"description"`
	SubmittedAt  null.Time    `db:"submitted_at"`
	Version      int          `db:"version"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (row submissionRow) submission() assessment.Submission {
	sub := assessment.Submission{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		StudentID:    row.StudentID,
		Score:        row.Score.Ptr(),
		AnswerFile:   row.AnswerFile.Ptr(),
		Description:  row.Description,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.SubmittedAt.Valid {
		t := row.SubmittedAt.Time.UTC()
		sub.SubmittedAt = &t
	}
	return sub
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

type assessmentRepository struct {
	repo
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *sqlx.DB) assessment.Repository {
	return &assessmentRepository{repo{db: db}}
}

const (
	assignmentColumns = "id, title, description, course_id, class_id, start_at, end_at, max_score, attachment, created_at"
	submissionColumns = "id, assignment_id, student_id, score, answer_file, description, submitted_at, version, created_at, updated_at"
)

func (r *assessmentRepository) CreateAssignment(ctx context.Context, a assessment.Assignment) (assessment.Assignment, error) {
	table, err := assignmentTable(a.Kind)
	if err != nil {
		return assessment.Assignment{}, err
	}
	q := "INSERT INTO " + table + ` (title, description, course_id, class_id, start_at, end_at, max_score, attachment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err = r.get(ctx, &a.ID, q,
		a.Title, a.Description, a.CourseID, nullInt(a.ClassID), a.StartAt.UTC(), a.EndAt.UTC(),
		null.Float64FromPtr(a.MaxScore), null.NewString(a.Attachment, a.Attachment != ""), a.CreatedAt.UTC())
	return a, errors.Wrapf(err, "inserting %s", a.Kind)
}

func (r *assessmentRepository) GetAssignment(ctx context.Context, kind assessment.Kind, id int) (assessment.Assignment, error) {
	table, err := assignmentTable(kind)
	if err != nil {
		return assessment.Assignment{}, err
	}
	var row assignmentRow
	if err = r.get(ctx, &row, "SELECT "+assignmentColumns+" FROM "+table+" WHERE id = ?", id); err != nil {
		return assessment.Assignment{}, trapNoRowsErr(err, core.NewNotFoundError(string(kind), id), "getting "+string(kind))
	}
	return row.assignment(kind), nil
}

func (r *assessmentRepository) QueryAssignments(ctx context.Context, kind assessment.Kind, filter assessment.Filter) ([]assessment.Assignment, error) {
	table, err := assignmentTable(kind)
	if err != nil {
		return nil, err
	}
	var w where
	if filter.CourseID != nil {
		w.add("course_id = ?", *filter.CourseID)
	}
	if filter.ClassID != nil {
		w.add("class_id = ?", *filter.ClassID)
	}
	if len(filter.CourseIDs) > 0 {
		w.add("course_id IN (?)", filter.CourseIDs)
	}
	var rows []assignmentRow
	if err = r.selectAll(ctx, &rows, "SELECT "+assignmentColumns+" FROM "+table+w.String()+" ORDER BY start_at DESC, id DESC", w.args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	res := make([]assessment.Assignment, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.assignment(kind))
	}
	return res, nil
}

func (r *assessmentRepository) UpdateAssignment(ctx context.Context, a assessment.Assignment) (assessment.Assignment, error) {
	table, err := assignmentTable(a.Kind)
	if err != nil {
		return assessment.Assignment{}, err
	}
	q := "UPDATE " + table + " SET title = ?, description = ?, start_at = ?, end_at = ?, max_score = ?, attachment = ? WHERE id = ?"
	n, err := r.run(ctx, q, a.Title, a.Description, a.StartAt.UTC(), a.EndAt.UTC(),
		null.Float64FromPtr(a.MaxScore), null.NewString(a.Attachment, a.Attachment != ""), a.ID)
	if err != nil {
		return assessment.Assignment{}, errors.Wrapf(err, "updating %s", a.Kind)
	}
	if n == 0 {
		return assessment.Assignment{}, core.NewNotFoundError(string(a.Kind), a.ID)
	}
	return a, nil
}

func (r *assessmentRepository) DeleteAssignments(ctx context.Context, kind assessment.Kind, ids ...int) (int, error) {
	table, err := assignmentTable(kind)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	n, err := r.run(ctx, "DELETE FROM "+table+" WHERE id IN (?)", ids)
	return n, errors.Wrapf(err, "deleting %s", table)
}

func (r *assessmentRepository) CreateSubmission(ctx context.Context, kind assessment.Kind, sub assessment.Submission) (assessment.Submission, error) {
	table, err := submissionTable(kind)
	if err != nil {
		return assessment.Submission{}, err
	}
	sub.Version = 1
	q := "INSERT INTO " + table + ` (assignment_id, student_id, score, answer_file, description, submitted_at, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err = r.get(ctx, &sub.ID, q,
		sub.AssignmentID, sub.StudentID, null.Float64FromPtr(sub.Score), null.StringFromPtr(sub.AnswerFile),
		sub.Description, nullTime(sub.SubmittedAt), sub.Version, sub.CreatedAt.UTC(), sub.UpdatedAt.UTC())
	if uniqueConstraint(err) != "" {
		return assessment.Submission{}, core.NewConflictError("submission", sub.StudentID)
	}
	return sub, errors.Wrap(err, "inserting submission")
}

func (r *assessmentRepository) getSubmission(ctx context.Context, kind assessment.Kind, where string, args ...interface{}) (assessment.Submission, error) {
	table, err := submissionTable(kind)
	if err != nil {
		return assessment.Submission{}, err
	}
	var row submissionRow
	if err = r.get(ctx, &row, "SELECT "+submissionColumns+" FROM "+table+" WHERE "+where, args...); err != nil {
		return assessment.Submission{}, trapNoRowsErr(err, assessment.ErrSubmissionNotFound, "getting submission")
	}
	return row.submission(), nil
}

func (r *assessmentRepository) GetSubmission(ctx context.Context, kind assessment.Kind, id int) (assessment.Submission, error) {
	return r.getSubmission(ctx, kind, "id = ?", id)
}

func (r *assessmentRepository) GetStudentSubmission(ctx context.Context, kind assessment.Kind, assignmentID, studentID int) (assessment.Submission, error) {
	return r.getSubmission(ctx, kind, "assignment_id = ? AND student_id = ?", assignmentID, studentID)
}

func (r *assessmentRepository) QuerySubmissions(ctx context.Context, kind assessment.Kind, filter assessment.SubmissionFilter) ([]assessment.Submission, error) {
	table, err := submissionTable(kind)
	if err != nil {
		return nil, err
	}
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []assessment.Submission{}, nil
	}
	var w where
	if filter.AssignmentID != nil {
		w.add("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.StudentID != nil {
		w.add("student_id = ?", *filter.StudentID)
	}
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	var rows []submissionRow
	if err = r.selectAll(ctx, &rows, "SELECT "+submissionColumns+" FROM "+table+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	subs := make([]assessment.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}

func (r *assessmentRepository) UpdateSubmission(ctx context.Context, kind assessment.Kind, sub assessment.Submission) (assessment.Submission, error) {
	table, err := submissionTable(kind)
	if err != nil {
		return assessment.Submission{}, err
	}
	q := "UPDATE " + table + ` SET score = ?, answer_file = ?, description = ?, submitted_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	n, err := r.run(ctx, q,
		null.Float64FromPtr(sub.Score), null.StringFromPtr(sub.AnswerFile), sub.Description, nullTime(sub.SubmittedAt),
		sub.UpdatedAt.UTC(), sub.ID, sub.Version)
	if err != nil {
		return assessment.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n == 0 {
		if _, err = r.GetSubmission(ctx, kind, sub.ID); err != nil {
			return assessment.Submission{}, err
		}
		return assessment.Submission{}, core.NewConflictError("submission", sub.ID)
	}
	sub.Version++
	return sub, nil
}
