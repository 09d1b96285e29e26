package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func counts(buckets []Bucket) []int {
	c := make([]int, len(buckets))
	for i, b := range buckets {
		c[i] = b.Count
	}
	return c
}

func TestAggregates(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		wantAvg    float64
		wantPass   int
		wantCounts []int
	}{
		{name: "empty", values: nil, wantAvg: 0, wantPass: 0, wantCounts: []int{0, 0, 0, 0, 0}},
		{name: "mixed", values: []float64{20, 15, 13, 8}, wantAvg: 14, wantPass: 75, wantCounts: []int{1, 0, 1, 1, 1}},
		{name: "boundaries", values: []float64{18, 16, 14, 12, 11.99}, wantAvg: 14.4, wantPass: 80, wantCounts: []int{1, 1, 1, 1, 1}},
		{name: "rounding", values: []float64{12.25, 12.2}, wantAvg: 12.2, wantPass: 100, wantCounts: []int{0, 0, 0, 2, 0}},
		{name: "all failing", values: []float64{0, 5, 11}, wantAvg: 5.3, wantPass: 0, wantCounts: []int{0, 0, 0, 0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAvg, Average(tt.values))
			assert.Equal(t, tt.wantPass, PassRate(tt.values))

			hist := Histogram(tt.values)
			assert.Equal(t, []string{Bucket18To20, Bucket16To18, Bucket14To16, Bucket12To14, BucketBelow},
				[]string{hist[0].Label, hist[1].Label, hist[2].Label, hist[3].Label, hist[4].Label})
			assert.Equal(t, tt.wantCounts, counts(hist))

			var sum int
			for _, b := range hist {
				sum += b.Count
			}
			assert.Equal(t, len(tt.values), sum)
		})
	}
}

func TestHistogramPercent(t *testing.T) {
	hist := Histogram([]float64{20, 15, 13})
	assert.Equal(t, 33, hist[0].Percent)
	assert.Equal(t, 0, hist[1].Percent)
	assert.Equal(t, 33, hist[2].Percent)
	assert.Equal(t, 33, hist[3].Percent)
}

func TestTopPerformers(t *testing.T) {
	recs := []Record{
		{StudentID: 1, StudentName: "Ali", Course: "Math", Value: 15},
		{StudentID: 2, StudentName: "Sara", Course: "Math", Value: 19},
		{StudentID: 3, StudentName: "Reza", Course: "Math", Value: 17},
		{StudentID: 4, StudentName: "Nima", Course: "Math", Value: 17},
		{StudentID: 1, StudentName: "Ali", Course: "Physics", Value: 20},
	}

	top := TopPerformers(recs, 3)
	assert.Equal(t, []Performer{
		{StudentID: 2, Name: "Sara", Average: 19, Count: 1},
		{StudentID: 1, Name: "Ali", Average: 17.5, Count: 2},
		{StudentID: 3, Name: "Reza", Average: 17, Count: 1},
	}, top)

	assert.Equal(t, []Performer{}, TopPerformers(nil, 3))
	assert.Len(t, TopPerformers(recs[:2], 3), 2)
}

func TestTopPerformers_ranksOnExactMean(t *testing.T) {
	recs := []Record{
		{StudentID: 1, StudentName: "Ali", Course: "Math", Value: 14},
		{StudentID: 2, StudentName: "Sara", Course: "Math", Value: 14.02},
		{StudentID: 3, StudentName: "Reza", Course: "History", Value: 14.04},
	}
	// every average rounds to 14, the order follows the exact means
	assert.Equal(t, []Performer{
		{StudentID: 3, Name: "Reza", Average: 14, Count: 1},
		{StudentID: 2, Name: "Sara", Average: 14, Count: 1},
		{StudentID: 1, Name: "Ali", Average: 14, Count: 1},
	}, TopPerformers(recs, 3))

	assert.Equal(t, []Subject{
		{Name: "History", Average: 14, Count: 1},
		{Name: "Math", Average: 14, Count: 2},
	}, SubjectBreakdown(recs, "Unknown"))
}

func TestSubjectBreakdown(t *testing.T) {
	recs := []Record{
		{StudentID: 1, Course: "Math", Value: 12},
		{StudentID: 2, Course: "Physics", Value: 18},
		{StudentID: 1, Course: "", Value: 10},
		{StudentID: 2, Course: "Math", Value: 15},
	}
	assert.Equal(t, []Subject{
		{Name: "Physics", Average: 18, Count: 1},
		{Name: "Math", Average: 13.5, Count: 2},
		{Name: "Unknown", Average: 10, Count: 1},
	}, SubjectBreakdown(recs, "Unknown"))

	assert.Equal(t, []Subject{}, SubjectBreakdown(nil, "Unknown"))
}
