// Package stats derives read-only reports from recorded scores.
package stats

import (
	"math"
	"sort"
)

// PassMark is the lowest passing score.
const PassMark = 12

// Bucket labels, best first
const (
	Bucket18To20 = "18-20"
	Bucket16To18 = "16-18"
	Bucket14To16 = "14-16"
	Bucket12To14 = "12-14"
	BucketBelow  = "<12"
)

type (
	// Record is a score value with the names it is grouped by.
	Record struct {
		StudentID   int
		StudentName string
		Course      string // empty when the course no longer exists
		Value       float64
	}

	Bucket struct {
		Label   string `json:"label"`
		Count   int    `json:"count"`
		Percent int    `json:"percent"`
	}

	Performer struct {
		StudentID int     `json:"student_id"`
		Name      string  `json:"name"`
		Average   float64 `json:"average"`
		Count     int     `json:"count"`
	}

	Subject struct {
		Name    string  `json:"name"`
		Average float64 `json:"average"`
		Count   int     `json:"count"`
	}
)

// round1 rounds half away from zero to one decimal.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(total)))
}

// Average returns the mean of values rounded to one decimal, 0 when empty.
func Average(values []float64) float64 {
	return round1(mean(values))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// rankByMean returns the indexes of groups ordered by unrounded mean, best first.
// Equal means keep their group order.
func rankByMean(groups [][]float64) []int {
	means := make([]float64, len(groups))
	order := make([]int, len(groups))
	for i, g := range groups {
		means[i] = mean(g)
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return means[order[i]] > means[order[j]]
	})
	return order
}

// PassRate returns the rounded percentage of values at or above PassMark.
func PassRate(values []float64) int {
	var n int
	for _, v := range values {
		if v >= PassMark {
			n++
		}
	}
	return percent(n, len(values))
}

// Histogram sorts values into five half-open ranges. Counts always sum to len(values).
func Histogram(values []float64) []Bucket {
	buckets := []Bucket{
		{Label: Bucket18To20},
		{Label: Bucket16To18},
		{Label: Bucket14To16},
		{Label: Bucket12To14},
		{Label: BucketBelow},
	}
	for _, v := range values {
		switch {
		case v >= 18:
			buckets[0].Count++
		case v >= 16:
			buckets[1].Count++
		case v >= 14:
			buckets[2].Count++
		case v >= 12:
			buckets[3].Count++
		default:
			buckets[4].Count++
		}
	}
	for i := range buckets {
		buckets[i].Percent = percent(buckets[i].Count, len(values))
	}
	return buckets
}

// TopPerformers returns the n students with the best average. Students are ranked on
// their exact mean; ties keep the order in which students first appear in recs.
func TopPerformers(recs []Record, n int) []Performer {
	idx := make(map[int]int)
	var (
		performers []Performer
		values     [][]float64
	)
	for _, r := range recs {
		i, ok := idx[r.StudentID]
		if !ok {
			i = len(performers)
			idx[r.StudentID] = i
			performers = append(performers, Performer{StudentID: r.StudentID, Name: r.StudentName})
			values = append(values, nil)
		}
		values[i] = append(values[i], r.Value)
	}
	ranked := make([]Performer, 0, len(performers))
	for _, i := range rankByMean(values) {
		p := performers[i]
		p.Average = Average(values[i])
		p.Count = len(values[i])
		ranked = append(ranked, p)
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// SubjectBreakdown averages recs per course, best first. Records without a course
// are grouped under unknownLabel.
func SubjectBreakdown(recs []Record, unknownLabel string) []Subject {
	idx := make(map[string]int)
	var (
		subjects []Subject
		values   [][]float64
	)
	for _, r := range recs {
		name := r.Course
		if name == "" {
			name = unknownLabel
		}
		i, ok := idx[name]
		if !ok {
			i = len(subjects)
			idx[name] = i
			subjects = append(subjects, Subject{Name: name})
			values = append(values, nil)
		}
		values[i] = append(values[i], r.Value)
	}
	ranked := make([]Subject, 0, len(subjects))
	for _, i := range rankByMean(values) {
		sub := subjects[i]
		sub.Average = Average(values[i])
		sub.Count = len(values[i])
		ranked = append(ranked, sub)
	}
	return ranked
}

func valuesOf(recs []Record) []float64 {
	vals := make([]float64, len(recs))
	for i, r := range recs {
		vals[i] = r.Value
	}
	return vals
}
