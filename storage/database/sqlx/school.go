package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

func nullInt(i *int) null.Int {
	return null.IntFromPtr(i)
}

func intPtr(i null.Int) *int {
	return i.Ptr()
}

// Classes

type classRepository struct {
	repo
}

var _ school.ClassRepository = (*classRepository)(nil)

func NewClassRepository(db *sqlx.DB) school.ClassRepository {
	return &classRepository{repo{db: db}}
}

const classColumns = "id, name, grade, capacity"

func (r *classRepository) CreateClass(ctx context.Context, class school.Class) (school.Class, error) {
	err := r.get(ctx, &class.ID, "INSERT INTO classes (name, grade, capacity) VALUES (?, ?, ?) RETURNING id",
		class.Name, class.Grade, class.Capacity)
	return class, errors.Wrap(err, "inserting class")
}

func (r *classRepository) GetClass(ctx context.Context, id int) (school.Class, error) {
	var class school.Class
	if err := r.get(ctx, &class, "SELECT "+classColumns+" FROM classes WHERE id = ?", id); err != nil {
		return school.Class{}, trapNoRowsErr(err, school.ErrClassNotFound, "getting class")
	}
	return class, nil
}

func (r *classRepository) QueryClasses(ctx context.Context, filter school.ClassFilter, ordering []core.DBOrdering) ([]school.Class, error) {
	var w where
	w.search(filter.Search, "name", "grade")
	classes := []school.Class{}
	q := "SELECT " + classColumns + " FROM classes" + w.String() + orderBy(ordering, "name ASC", "id", "name", "grade", "capacity")
	if err := r.selectAll(ctx, &classes, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}

func (r *classRepository) UpdateClass(ctx context.Context, class school.Class) (school.Class, error) {
	n, err := r.run(ctx, "UPDATE classes SET name = ?, grade = ?, capacity = ? WHERE id = ?",
		class.Name, class.Grade, class.Capacity, class.ID)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "updating class")
	}
	if n == 0 {
		return school.Class{}, school.ErrClassNotFound
	}
	return class, nil
}

func (r *classRepository) DeleteClasses(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, "DELETE FROM classes WHERE id IN (?)", ids)
	return n, errors.Wrap(err, "deleting classes")
}

// Courses

type courseRow struct {
	ID        int      `db:"id"`
	Name      string   `db:"name"`
	ClassID   null.Int `db:"class_id"`
	TeacherID null.Int `db:"teacher_id"`
	Version   int      `db:"version"`
}

func (row courseRow) course() school.Course {
	return school.Course{
		ID:        row.ID,
		Name:      row.Name,
		ClassID:   intPtr(row.ClassID),
		TeacherID: intPtr(row.TeacherID),
		Version:   row.Version,
	}
}

type courseRepository struct {
	repo
}

var _ school.CourseRepository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) school.CourseRepository {
	return &courseRepository{repo{db: db}}
}

const courseColumns = "id, name, class_id, teacher_id, version"

func (r *courseRepository) CreateCourse(ctx context.Context, course school.Course) (school.Course, error) {
	course.Version = 1
	err := r.get(ctx, &course.ID, "INSERT INTO courses (name, class_id, teacher_id, version) VALUES (?, ?, ?, ?) RETURNING id",
		course.Name, nullInt(course.ClassID), nullInt(course.TeacherID), course.Version)
	return course, errors.Wrap(err, "inserting course")
}

func (r *courseRepository) GetCourse(ctx context.Context, id int) (school.Course, error) {
	var row courseRow
	if err := r.get(ctx, &row, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id); err != nil {
		return school.Course{}, trapNoRowsErr(err, school.ErrCourseNotFound, "getting course")
	}
	return row.course(), nil
}

func (r *courseRepository) QueryCourses(ctx context.Context, filter school.CourseFilter, ordering []core.DBOrdering) ([]school.Course, error) {
	var w where
	w.search(filter.Search, "name")
	if filter.ClassID != nil {
		w.add("class_id = ?", *filter.ClassID)
	}
	if filter.TeacherID != nil {
		w.add("teacher_id = ?", *filter.TeacherID)
	}
	var rows []courseRow
	q := "SELECT " + courseColumns + " FROM courses" + w.String() + orderBy(ordering, "name ASC", "id", "name", "class_id", "teacher_id")
	if err := r.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]school.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (r *courseRepository) UpdateCourse(ctx context.Context, course school.Course) (school.Course, error) {
	n, err := r.run(ctx, "UPDATE courses SET name = ?, class_id = ?, teacher_id = ?, version = version + 1 WHERE id = ? AND version = ?",
		course.Name, nullInt(course.ClassID), nullInt(course.TeacherID), course.ID, course.Version)
	if err != nil {
		return school.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		if _, err = r.GetCourse(ctx, course.ID); err != nil {
			return school.Course{}, err
		}
		return school.Course{}, core.NewConflictError("course", course.ID)
	}
	course.Version++
	return course, nil
}

func (r *courseRepository) DeleteCourses(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, "DELETE FROM courses WHERE id IN (?)", ids)
	return n, errors.Wrap(err, "deleting courses")
}

// Students

type studentRow struct {
	ID      int         `db:"id"`
	Name    string      `db:"name"`
	Code    string      `db:"code"`
	ClassID null.Int    `db:"class_id"`
	UserID  null.String `db:"user_id"`
}

func (row studentRow) student() school.Student {
	return school.Student{
		ID:      row.ID,
		Name:    row.Name,
		Code:    row.Code,
		ClassID: intPtr(row.ClassID),
		UserID:  row.UserID.String,
	}
}

type studentRepository struct {
	repo
}

var _ school.StudentRepository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) school.StudentRepository {
	return &studentRepository{repo{db: db}}
}

const studentColumns = "id, name, code, class_id, user_id"

func (r *studentRepository) CreateStudent(ctx context.Context, st school.Student) (school.Student, error) {
	err := r.get(ctx, &st.ID, "INSERT INTO students (name, code, class_id, user_id) VALUES (?, ?, ?, ?) RETURNING id",
		st.Name, st.Code, nullInt(st.ClassID), null.NewString(st.UserID, st.UserID != ""))
	if uniqueConstraint(err) != "" {
		return school.Student{}, school.ErrStudentCodeExists
	}
	return st, errors.Wrap(err, "inserting student")
}

func (r *studentRepository) getBy(ctx context.Context, col string, val interface{}) (school.Student, error) {
	var row studentRow
	if err := r.get(ctx, &row, "SELECT "+studentColumns+" FROM students WHERE "+col+" = ?", val); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrStudentNotFound, "getting student")
	}
	return row.student(), nil
}

func (r *studentRepository) GetStudent(ctx context.Context, id int) (school.Student, error) {
	return r.getBy(ctx, "id", id)
}

func (r *studentRepository) GetStudentByUserID(ctx context.Context, userID string) (school.Student, error) {
	if len(validUUIDs([]string{userID})) == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return r.getBy(ctx, "user_id", userID)
}

func (r *studentRepository) StudentCodeExists(ctx context.Context, code string, excludedID int) (bool, error) {
	var exists bool
	err := r.get(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM students WHERE code = ? AND id <> ?)", code, excludedID)
	return exists, errors.Wrap(err, "checking student code")
}

func (r *studentRepository) QueryStudents(ctx context.Context, filter school.StudentFilter, ordering []core.DBOrdering) ([]school.Student, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []school.Student{}, nil
	}
	var w where
	w.search(filter.Search, "name", "code")
	if filter.ClassID != nil {
		w.add("class_id = ?", *filter.ClassID)
	}
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	var rows []studentRow
	q := "SELECT " + studentColumns + " FROM students" + w.String() + orderBy(ordering, "id ASC", "id", "name", "code", "class_id")
	if err := r.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (r *studentRepository) UpdateStudent(ctx context.Context, st school.Student) (school.Student, error) {
	n, err := r.run(ctx, "UPDATE students SET name = ?, code = ?, class_id = ? WHERE id = ?",
		st.Name, st.Code, nullInt(st.ClassID), st.ID)
	if err != nil {
		if uniqueConstraint(err) != "" {
			return school.Student{}, school.ErrStudentCodeExists
		}
		return school.Student{}, errors.Wrap(err, "updating student")
	}
	if n == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return st, nil
}

func (r *studentRepository) DeleteStudents(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, "DELETE FROM students WHERE id IN (?)", ids)
	return n, errors.Wrap(err, "deleting students")
}

// Teachers

type teacherRow struct {
	ID           int         `db:"id"`
	Name         string      `db:"name"`
	NationalCode null.String `db:"national_code"`
	Phone        string      `db:"phone"`
	UserID       null.String `db:"user_id"`
}

func (row teacherRow) teacher() school.Teacher {
	return school.Teacher{
		ID:           row.ID,
		Name:         row.Name,
		NationalCode: row.NationalCode.String,
		Phone:        row.Phone,
		UserID:       row.UserID.String,
	}
}

type teacherRepository struct {
	repo
}

var _ school.TeacherRepository = (*teacherRepository)(nil)

func NewTeacherRepository(db *sqlx.DB) school.TeacherRepository {
	return &teacherRepository{repo{db: db}}
}

const teacherColumns = "id, name, national_code, phone, user_id"

func (r *teacherRepository) CreateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	err := r.get(ctx, &t.ID, "INSERT INTO teachers (name, national_code, phone, user_id) VALUES (?, ?, ?, ?) RETURNING id",
		t.Name, null.NewString(t.NationalCode, t.NationalCode != ""), t.Phone, null.NewString(t.UserID, t.UserID != ""))
	if uniqueConstraint(err) != "" {
		return school.Teacher{}, school.ErrNationalCodeExists
	}
	return t, errors.Wrap(err, "inserting teacher")
}

func (r *teacherRepository) getBy(ctx context.Context, col string, val interface{}) (school.Teacher, error) {
	var row teacherRow
	if err := r.get(ctx, &row, "SELECT "+teacherColumns+" FROM teachers WHERE "+col+" = ?", val); err != nil {
		return school.Teacher{}, trapNoRowsErr(err, school.ErrTeacherNotFound, "getting teacher")
	}
	return row.teacher(), nil
}

func (r *teacherRepository) GetTeacher(ctx context.Context, id int) (school.Teacher, error) {
	return r.getBy(ctx, "id", id)
}

func (r *teacherRepository) GetTeacherByUserID(ctx context.Context, userID string) (school.Teacher, error) {
	if len(validUUIDs([]string{userID})) == 0 {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	return r.getBy(ctx, "user_id", userID)
}

func (r *teacherRepository) NationalCodeExists(ctx context.Context, code string, excludedID int) (bool, error) {
	var exists bool
	err := r.get(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM teachers WHERE national_code = ? AND id <> ?)", code, excludedID)
	return exists, errors.Wrap(err, "checking national code")
}

func (r *teacherRepository) QueryTeachers(ctx context.Context, filter school.TeacherFilter, ordering []core.DBOrdering) ([]school.Teacher, error) {
	var w where
	w.search(filter.Search, "name", "national_code")
	var rows []teacherRow
	q := "SELECT " + teacherColumns + " FROM teachers" + w.String() + orderBy(ordering, "name ASC", "id", "name", "national_code")
	if err := r.selectAll(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]school.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, row.teacher())
	}
	return teachers, nil
}

func (r *teacherRepository) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	n, err := r.run(ctx, "UPDATE teachers SET name = ?, national_code = ?, phone = ? WHERE id = ?",
		t.Name, null.NewString(t.NationalCode, t.NationalCode != ""), t.Phone, t.ID)
	if err != nil {
		if uniqueConstraint(err) != "" {
			return school.Teacher{}, school.ErrNationalCodeExists
		}
		return school.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if n == 0 {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	return t, nil
}

func (r *teacherRepository) DeleteTeachers(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.run(ctx, "DELETE FROM teachers WHERE id IN (?)", ids)
	return n, errors.Wrap(err, "deleting teachers")
}
