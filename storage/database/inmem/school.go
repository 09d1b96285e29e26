package inmemdb

import (
	"context"
	"sort"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

// Classes

type classRepository struct {
	db *DB
}

var _ school.ClassRepository = (*classRepository)(nil)

func NewClassRepository(db *DB) school.ClassRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(_ context.Context, class school.Class) (school.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	class.ID = repo.db.nextID("classes")
	repo.db.t.classes[class.ID] = class
	return class, nil
}

func (repo *classRepository) GetClass(_ context.Context, id int) (school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if class, ok := repo.db.t.classes[id]; ok {
		return class, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *classRepository) QueryClasses(_ context.Context, filter school.ClassFilter, ordering []core.DBOrdering) ([]school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.t.classes))
	for _, class := range repo.db.t.classes {
		if matches(filter.Search, class.Name, class.Grade) {
			classes = append(classes, class)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	sort.SliceStable(classes, lessFor(ordering, core.DBOrdering{Field: "name", Ascending: true}, map[string]comparator{
		"id":       func(i, j int) int { return cmpInt(classes[i].ID, classes[j].ID) },
		"name":     func(i, j int) int { return cmpString(classes[i].Name, classes[j].Name) },
		"grade":    func(i, j int) int { return cmpString(classes[i].Grade, classes[j].Grade) },
		"capacity": func(i, j int) int { return cmpInt(classes[i].Capacity, classes[j].Capacity) },
	}))
	return classes, nil
}

func (repo *classRepository) UpdateClass(_ context.Context, class school.Class) (school.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.classes[class.ID]; !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	repo.db.t.classes[class.ID] = class
	return class, nil
}

func (repo *classRepository) DeleteClasses(_ context.Context, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.t.classes[id]; ok {
			delete(repo.db.t.classes, id)
			n++
		}
	}
	return n, nil
}

// Courses

type courseRepository struct {
	db *DB
}

var _ school.CourseRepository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) school.CourseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, course school.Course) (school.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	course.ID = repo.db.nextID("courses")
	course.Version = 1
	repo.db.t.courses[course.ID] = course
	return course, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id int) (school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if course, ok := repo.db.t.courses[id]; ok {
		return course, nil
	}
	return school.Course{}, school.ErrCourseNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter school.CourseFilter, ordering []core.DBOrdering) ([]school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]school.Course, 0, len(repo.db.t.courses))
	for _, c := range repo.db.t.courses {
		if !matches(filter.Search, c.Name) {
			continue
		}
		if filter.ClassID != nil && (c.ClassID == nil || *c.ClassID != *filter.ClassID) {
			continue
		}
		if filter.TeacherID != nil && (c.TeacherID == nil || *c.TeacherID != *filter.TeacherID) {
			continue
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	sort.SliceStable(courses, lessFor(ordering, core.DBOrdering{Field: "name", Ascending: true}, map[string]comparator{
		"id":         func(i, j int) int { return cmpInt(courses[i].ID, courses[j].ID) },
		"name":       func(i, j int) int { return cmpString(courses[i].Name, courses[j].Name) },
		"class_id":   func(i, j int) int { return cmpIntPtr(courses[i].ClassID, courses[j].ClassID) },
		"teacher_id": func(i, j int) int { return cmpIntPtr(courses[i].TeacherID, courses[j].TeacherID) },
	}))
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, course school.Course) (school.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fail("UpdateCourse"); err != nil {
		return school.Course{}, err
	}
	orig, ok := repo.db.t.courses[course.ID]
	if !ok {
		return school.Course{}, school.ErrCourseNotFound
	}
	if orig.Version != course.Version {
		return school.Course{}, core.NewConflictError("course", course.ID)
	}
	course.Version++
	repo.db.t.courses[course.ID] = course
	return course, nil
}

func (repo *courseRepository) DeleteCourses(_ context.Context, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.t.courses[id]; ok {
			delete(repo.db.t.courses, id)
			n++
		}
	}
	return n, nil
}

// Students

type studentRepository struct {
	db *DB
}

var _ school.StudentRepository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) school.StudentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) codeExists(code string, excludedID int) bool {
	for _, st := range repo.db.t.students {
		if st.Code == code && st.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *studentRepository) CreateStudent(_ context.Context, st school.Student) (school.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fail("CreateStudent"); err != nil {
		return school.Student{}, err
	}
	if repo.codeExists(st.Code, 0) {
		return school.Student{}, school.ErrStudentCodeExists
	}
	st.ID = repo.db.nextID("students")
	repo.db.t.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id int) (school.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if st, ok := repo.db.t.students[id]; ok {
		return st, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *studentRepository) GetStudentByUserID(_ context.Context, userID string) (school.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, st := range repo.db.t.students {
		if userID != "" && st.UserID == userID {
			return st, nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *studentRepository) StudentCodeExists(_ context.Context, code string, excludedID int) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.codeExists(code, excludedID), nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter school.StudentFilter, ordering []core.DBOrdering) ([]school.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]school.Student, 0, len(repo.db.t.students))
	for _, st := range repo.db.t.students {
		if !matches(filter.Search, st.Name, st.Code) {
			continue
		}
		if filter.ClassID != nil && (st.ClassID == nil || *st.ClassID != *filter.ClassID) {
			continue
		}
		if filter.IDs != nil && !containsInt(filter.IDs, st.ID) {
			continue
		}
		students = append(students, st)
	}
	sort.SliceStable(students, lessFor(ordering, core.DBOrdering{Field: "id", Ascending: true}, map[string]comparator{
		"id":       func(i, j int) int { return cmpInt(students[i].ID, students[j].ID) },
		"name":     func(i, j int) int { return cmpString(students[i].Name, students[j].Name) },
		"code":     func(i, j int) int { return cmpString(students[i].Code, students[j].Code) },
		"class_id": func(i, j int) int { return cmpIntPtr(students[i].ClassID, students[j].ClassID) },
	}))
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st school.Student) (school.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.t.students[st.ID]
	if !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	if repo.codeExists(st.Code, st.ID) {
		return school.Student{}, school.ErrStudentCodeExists
	}
	st.UserID = orig.UserID
	repo.db.t.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) DeleteStudents(_ context.Context, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.t.students[id]; ok {
			delete(repo.db.t.students, id)
			n++
		}
	}
	return n, nil
}

// Teachers

type teacherRepository struct {
	db *DB
}

var _ school.TeacherRepository = (*teacherRepository)(nil)

func NewTeacherRepository(db *DB) school.TeacherRepository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) nationalCodeExists(code string, excludedID int) bool {
	if code == "" {
		return false
	}
	for _, t := range repo.db.t.teachers {
		if t.NationalCode == code && t.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *teacherRepository) CreateTeacher(_ context.Context, t school.Teacher) (school.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.nationalCodeExists(t.NationalCode, 0) {
		return school.Teacher{}, school.ErrNationalCodeExists
	}
	t.ID = repo.db.nextID("teachers")
	repo.db.t.teachers[t.ID] = t
	return t, nil
}

func (repo *teacherRepository) GetTeacher(_ context.Context, id int) (school.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.t.teachers[id]; ok {
		return t, nil
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *teacherRepository) GetTeacherByUserID(_ context.Context, userID string) (school.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, t := range repo.db.t.teachers {
		if userID != "" && t.UserID == userID {
			return t, nil
		}
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *teacherRepository) NationalCodeExists(_ context.Context, code string, excludedID int) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.nationalCodeExists(code, excludedID), nil
}

func (repo *teacherRepository) QueryTeachers(_ context.Context, filter school.TeacherFilter, ordering []core.DBOrdering) ([]school.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	teachers := make([]school.Teacher, 0, len(repo.db.t.teachers))
	for _, t := range repo.db.t.teachers {
		if matches(filter.Search, t.Name, t.NationalCode) {
			teachers = append(teachers, t)
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	sort.SliceStable(teachers, lessFor(ordering, core.DBOrdering{Field: "name", Ascending: true}, map[string]comparator{
		"id":            func(i, j int) int { return cmpInt(teachers[i].ID, teachers[j].ID) },
		"name":          func(i, j int) int { return cmpString(teachers[i].Name, teachers[j].Name) },
		"national_code": func(i, j int) int { return cmpString(teachers[i].NationalCode, teachers[j].NationalCode) },
	}))
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(_ context.Context, t school.Teacher) (school.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.t.teachers[t.ID]
	if !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	if repo.nationalCodeExists(t.NationalCode, t.ID) {
		return school.Teacher{}, school.ErrNationalCodeExists
	}
	t.UserID = orig.UserID
	repo.db.t.teachers[t.ID] = t
	return t, nil
}

func (repo *teacherRepository) DeleteTeachers(_ context.Context, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.t.teachers[id]; ok {
			delete(repo.db.t.teachers, id)
			n++
		}
	}
	return n, nil
}
