package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
)

type scoreRow struct {
	ID        int       `db:"id"`
	StudentID int       `db:"student_id"`
	CourseID  int       `db:"course_id"`
	ClassID   null.Int  `db:"class_id"`
	Value     float64   `db:"value"`
	Period    string    `db:"period"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row scoreRow) score() score.Score {
	return score.Score{
		ID:        row.ID,
		StudentID: row.StudentID,
		CourseID:  row.CourseID,
		ClassID:   intPtr(row.ClassID),
		Value:     row.Value,
		Period:    row.Period,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type scoreRepository struct {
	repo
}

var _ score.Repository = (*scoreRepository)(nil)

func NewScoreRepository(db *sqlx.DB) score.Repository {
	return &scoreRepository{repo{db: db}}
}

const scoreColumns = "id, student_id, course_id, class_id, value, period, created_at, updated_at"

func (r *scoreRepository) UpsertScore(ctx context.Context, s score.Score) (score.Score, error) {
	var row scoreRow
	q := `INSERT INTO scores (student_id, course_id, class_id, value, period, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, course_id, period)
		DO UPDATE SET value = EXCLUDED.value, class_id = EXCLUDED.class_id, updated_at = EXCLUDED.updated_at
		RETURNING ` + scoreColumns
	err := r.get(ctx, &row, q,
		s.StudentID, s.CourseID, nullInt(s.ClassID), s.Value, s.Period, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return score.Score{}, errors.Wrap(err, "upserting score")
	}
	return row.score(), nil
}

func (r *scoreRepository) GetScore(ctx context.Context, id int) (score.Score, error) {
	var row scoreRow
	if err := r.get(ctx, &row, "SELECT "+scoreColumns+" FROM scores WHERE id = ?", id); err != nil {
		return score.Score{}, trapNoRowsErr(err, score.ErrNotFound, "getting score")
	}
	return row.score(), nil
}

func (r *scoreRepository) QueryScores(ctx context.Context, filter score.Filter) ([]score.Score, error) {
	var w where
	if filter.StudentID != nil {
		w.add("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		w.add("course_id = ?", *filter.CourseID)
	}
	if filter.ClassID != nil {
		w.add("class_id = ?", *filter.ClassID)
	}
	if len(filter.StudentIDs) > 0 {
		w.add("student_id IN (?)", filter.StudentIDs)
	}
	if filter.Period != "" {
		w.add("period = ?", filter.Period)
	}
	var rows []scoreRow
	if err := r.selectAll(ctx, &rows, "SELECT "+scoreColumns+" FROM scores"+w.String()+" ORDER BY created_at, id", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	scores := make([]score.Score, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, row.score())
	}
	return scores, nil
}

func (r *scoreRepository) DeleteScores(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, "DELETE FROM scores WHERE id IN (?)", ids)
	return n, errors.Wrap(err, "deleting scores")
}
