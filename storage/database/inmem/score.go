package inmemdb

import (
	"context"
	"sort"

	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
)

type scoreRepository struct {
	db *DB
}

var _ score.Repository = (*scoreRepository)(nil)

func NewScoreRepository(db *DB) score.Repository {
	return &scoreRepository{db: db}
}

func (repo *scoreRepository) UpsertScore(_ context.Context, s score.Score) (score.Score, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, existing := range repo.db.t.scores {
		if existing.StudentID == s.StudentID && existing.CourseID == s.CourseID && existing.Period == s.Period {
			existing.Value = s.Value
			existing.ClassID = s.ClassID
			existing.UpdatedAt = s.UpdatedAt
			repo.db.t.scores[id] = existing
			return existing, nil
		}
	}
	s.ID = repo.db.nextID("scores")
	repo.db.t.scores[s.ID] = s
	return s, nil
}

func (repo *scoreRepository) GetScore(_ context.Context, id int) (score.Score, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.t.scores[id]; ok {
		return s, nil
	}
	return score.Score{}, score.ErrNotFound
}

func (repo *scoreRepository) QueryScores(_ context.Context, filter score.Filter) ([]score.Score, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	scores := make([]score.Score, 0, len(repo.db.t.scores))
	for _, s := range repo.db.t.scores {
		if filter.StudentID != nil && s.StudentID != *filter.StudentID {
			continue
		}
		if filter.CourseID != nil && s.CourseID != *filter.CourseID {
			continue
		}
		if filter.ClassID != nil && (s.ClassID == nil || *s.ClassID != *filter.ClassID) {
			continue
		}
		if len(filter.StudentIDs) > 0 && !containsInt(filter.StudentIDs, s.StudentID) {
			continue
		}
		if filter.Period != "" && s.Period != filter.Period {
			continue
		}
		scores = append(scores, s)
	}
	sort.Slice(scores, func(i, j int) bool {
		if c := cmpTime(scores[i].CreatedAt, scores[j].CreatedAt); c != 0 {
			return c < 0
		}
		return scores[i].ID < scores[j].ID
	})
	return scores, nil
}

func (repo *scoreRepository) DeleteScores(_ context.Context, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.t.scores[id]; ok {
			delete(repo.db.t.scores, id)
			n++
		}
	}
	return n, nil
}
