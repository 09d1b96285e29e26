package stats

import (
	"context"
	"sort"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
)

const (
	topPerformersCount = 3
	latestScoresCount  = 5
)

type (
	ClassStatistics struct {
		Class         school.Class `json:"class"`
		StudentCount  int          `json:"student_count"`
		ScoreCount    int          `json:"score_count"`
		Average       float64      `json:"average"`
		PassRate      int          `json:"pass_rate"`
		Histogram     []Bucket     `json:"histogram"`
		TopPerformers []Performer  `json:"top_performers"`
		Subjects      []Subject    `json:"subjects"`
	}

	Overview struct {
		StudentCount  int         `json:"student_count"`
		TeacherCount  int         `json:"teacher_count"`
		ClassCount    int         `json:"class_count"`
		CourseCount   int         `json:"course_count"`
		ScoreCount    int         `json:"score_count"`
		Average       float64     `json:"average"`
		PassRate      int         `json:"pass_rate"`
		Histogram     []Bucket    `json:"histogram"`
		TopPerformers []Performer `json:"top_performers"`
		Subjects      []Subject   `json:"subjects"`
	}

	ClassSummary struct {
		ClassID      int     `json:"class_id"`
		Name         string  `json:"name"`
		StudentCount int     `json:"student_count"`
		ScoreCount   int     `json:"score_count"`
		Average      float64 `json:"average"`
		PassRate     int     `json:"pass_rate"`
	}

	StudentReport struct {
		Student  school.Student `json:"student"`
		Average  float64        `json:"average"`
		PassRate int            `json:"pass_rate"`
		Subjects []Subject      `json:"subjects"`
		Latest   []score.Score  `json:"latest"`
	}

	Service interface {
		ClassStatistics(ctx context.Context, classID int) (ClassStatistics, error)
		Overview(ctx context.Context) (Overview, error)
		// ClassComparison ranks classes by average score, best first.
		ClassComparison(ctx context.Context) ([]ClassSummary, error)
		StudentReport(ctx context.Context, actor access.Actor, studentID int) (StudentReport, error)
		// ClassSheet tabulates the per-course averages of every student of a class.
		ClassSheet(ctx context.Context, classID int, period string) (core.Sheet, error)
	}

	Deps struct {
		Conf     *core.Config
		Scores   score.Repository
		Classes  school.ClassRepository
		Courses  school.CourseRepository
		Students school.StudentRepository
		Teachers school.TeacherRepository
	}

	service struct {
		Deps
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

// records resolves the student and course names of scores.
func (svc *service) records(ctx context.Context, scores []score.Score) ([]Record, error) {
	if len(scores) == 0 {
		return nil, nil
	}
	courses, err := svc.Courses.QueryCourses(ctx, school.CourseFilter{}, nil)
	if err != nil {
		return nil, err
	}
	courseNames := make(map[int]string, len(courses))
	for _, c := range courses {
		courseNames[c.ID] = c.Name
	}

	ids := make([]int, 0, len(scores))
	seen := make(map[int]bool, len(scores))
	for _, s := range scores {
		if !seen[s.StudentID] {
			seen[s.StudentID] = true
			ids = append(ids, s.StudentID)
		}
	}
	students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{IDs: ids}, nil)
	if err != nil {
		return nil, err
	}
	studentNames := make(map[int]string, len(students))
	for _, st := range students {
		studentNames[st.ID] = st.Name
	}

	recs := make([]Record, len(scores))
	for i, s := range scores {
		name, ok := studentNames[s.StudentID]
		if !ok {
			name = svc.Conf.UnknownLabel
		}
		recs[i] = Record{
			StudentID:   s.StudentID,
			StudentName: name,
			Course:      courseNames[s.CourseID],
			Value:       s.Value,
		}
	}
	return recs, nil
}

func (svc *service) ClassStatistics(ctx context.Context, classID int) (ClassStatistics, error) {
	class, err := svc.Classes.GetClass(ctx, classID)
	if err != nil {
		return ClassStatistics{}, err
	}
	students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{ClassID: &class.ID}, nil)
	if err != nil {
		return ClassStatistics{}, err
	}
	scores, err := svc.Scores.QueryScores(ctx, score.Filter{ClassID: &class.ID})
	if err != nil {
		return ClassStatistics{}, err
	}
	recs, err := svc.records(ctx, scores)
	if err != nil {
		return ClassStatistics{}, err
	}

	vals := valuesOf(recs)
	return ClassStatistics{
		Class:         class,
		StudentCount:  len(students),
		ScoreCount:    len(vals),
		Average:       Average(vals),
		PassRate:      PassRate(vals),
		Histogram:     Histogram(vals),
		TopPerformers: TopPerformers(recs, topPerformersCount),
		Subjects:      SubjectBreakdown(recs, svc.Conf.UnknownLabel),
	}, nil
}

func (svc *service) Overview(ctx context.Context) (Overview, error) {
	students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{}, nil)
	if err != nil {
		return Overview{}, err
	}
	teachers, err := svc.Teachers.QueryTeachers(ctx, school.TeacherFilter{}, nil)
	if err != nil {
		return Overview{}, err
	}
	classes, err := svc.Classes.QueryClasses(ctx, school.ClassFilter{}, nil)
	if err != nil {
		return Overview{}, err
	}
	courses, err := svc.Courses.QueryCourses(ctx, school.CourseFilter{}, nil)
	if err != nil {
		return Overview{}, err
	}
	scores, err := svc.Scores.QueryScores(ctx, score.Filter{})
	if err != nil {
		return Overview{}, err
	}
	recs, err := svc.records(ctx, scores)
	if err != nil {
		return Overview{}, err
	}

	vals := valuesOf(recs)
	return Overview{
		StudentCount:  len(students),
		TeacherCount:  len(teachers),
		ClassCount:    len(classes),
		CourseCount:   len(courses),
		ScoreCount:    len(vals),
		Average:       Average(vals),
		PassRate:      PassRate(vals),
		Histogram:     Histogram(vals),
		TopPerformers: TopPerformers(recs, topPerformersCount),
		Subjects:      SubjectBreakdown(recs, svc.Conf.UnknownLabel),
	}, nil
}

func (svc *service) ClassComparison(ctx context.Context) ([]ClassSummary, error) {
	classes, err := svc.Classes.QueryClasses(ctx, school.ClassFilter{}, []core.DBOrdering{{Field: "id", Ascending: true}})
	if err != nil {
		return nil, err
	}
	summaries := make([]ClassSummary, 0, len(classes))
	for _, class := range classes {
		students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{ClassID: core.IntPtr(class.ID)}, nil)
		if err != nil {
			return nil, err
		}
		scores, err := svc.Scores.QueryScores(ctx, score.Filter{ClassID: core.IntPtr(class.ID)})
		if err != nil {
			return nil, err
		}
		vals := make([]float64, len(scores))
		for i, s := range scores {
			vals[i] = s.Value
		}
		summaries = append(summaries, ClassSummary{
			ClassID:      class.ID,
			Name:         class.Name,
			StudentCount: len(students),
			ScoreCount:   len(vals),
			Average:      Average(vals),
			PassRate:     PassRate(vals),
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Average > summaries[j].Average
	})
	return summaries, nil
}

func (svc *service) StudentReport(ctx context.Context, actor access.Actor, studentID int) (StudentReport, error) {
	if stActor, ok := actor.(access.StudentActor); ok && stActor.Student.ID != studentID {
		return StudentReport{}, core.NewAuthorizationError("you can only see your own report")
	}
	st, err := svc.Students.GetStudent(ctx, studentID)
	if err != nil {
		return StudentReport{}, err
	}
	scores, err := svc.Scores.QueryScores(ctx, score.Filter{StudentID: &st.ID})
	if err != nil {
		return StudentReport{}, err
	}
	recs, err := svc.records(ctx, scores)
	if err != nil {
		return StudentReport{}, err
	}

	latest := make([]score.Score, 0, latestScoresCount)
	for i := len(scores) - 1; i >= 0 && len(latest) < latestScoresCount; i-- {
		latest = append(latest, scores[i])
	}
	vals := valuesOf(recs)
	return StudentReport{
		Student:  st,
		Average:  Average(vals),
		PassRate: PassRate(vals),
		Subjects: SubjectBreakdown(recs, svc.Conf.UnknownLabel),
		Latest:   latest,
	}, nil
}

func (svc *service) ClassSheet(ctx context.Context, classID int, period string) (core.Sheet, error) {
	class, err := svc.Classes.GetClass(ctx, classID)
	if err != nil {
		return core.Sheet{}, err
	}
	students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{ClassID: &class.ID}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return core.Sheet{}, err
	}
	courses, err := svc.Courses.QueryCourses(ctx, school.CourseFilter{ClassID: &class.ID}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return core.Sheet{}, err
	}
	scores, err := svc.Scores.QueryScores(ctx, score.Filter{ClassID: &class.ID, Period: period})
	if err != nil {
		return core.Sheet{}, err
	}

	type key struct{ student, course int }
	values := make(map[key][]float64)
	perStudent := make(map[int][]float64)
	for _, s := range scores {
		k := key{s.StudentID, s.CourseID}
		values[k] = append(values[k], s.Value)
		perStudent[s.StudentID] = append(perStudent[s.StudentID], s.Value)
	}

	sheet := core.Sheet{
		Name:   class.Name,
		Header: []string{"code", "name"},
		Rows:   make([][]interface{}, 0, len(students)),
	}
	for _, c := range courses {
		sheet.Header = append(sheet.Header, c.Name)
	}
	sheet.Header = append(sheet.Header, "average")

	for _, st := range students {
		row := []interface{}{st.Code, st.Name}
		for _, c := range courses {
			if vals, ok := values[key{st.ID, c.ID}]; ok {
				row = append(row, Average(vals))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, Average(perStudent[st.ID]))
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}
