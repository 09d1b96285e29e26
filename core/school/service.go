package school

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

var (
	// errors
	ErrClassNotFound      error = &core.NotFoundError{Entity: "class"}
	ErrCourseNotFound     error = &core.NotFoundError{Entity: "course"}
	ErrStudentNotFound    error = &core.NotFoundError{Entity: "student"}
	ErrTeacherNotFound    error = &core.NotFoundError{Entity: "teacher"}
	ErrStudentCodeExists        = errors.New("a student with this code already exists")
	ErrNationalCodeExists       = errors.New("a teacher with this national code already exists")
	errClassDoesNotExist        = errors.New("class does not exist")
)

type (
	ClassRepository interface {
		CreateClass(ctx context.Context, class Class) (Class, error)
		GetClass(ctx context.Context, id int) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter, ordering []core.DBOrdering) ([]Class, error)
		UpdateClass(ctx context.Context, class Class) (Class, error)
		DeleteClasses(ctx context.Context, ids ...int) (int, error)
	}

	CourseRepository interface {
		CreateCourse(ctx context.Context, course Course) (Course, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		QueryCourses(ctx context.Context, filter CourseFilter, ordering []core.DBOrdering) ([]Course, error)
		// UpdateCourse saves course only if its stored version still equals course.Version,
		// else it returns a *core.ConflictError. The returned Course carries the new version.
		UpdateCourse(ctx context.Context, course Course) (Course, error)
		DeleteCourses(ctx context.Context, ids ...int) (int, error)
	}

	StudentRepository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudent(ctx context.Context, id int) (Student, error)
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)
		StudentCodeExists(ctx context.Context, code string, excludedID int) (bool, error)
		QueryStudents(ctx context.Context, filter StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		DeleteStudents(ctx context.Context, ids ...int) (int, error)
	}

	TeacherRepository interface {
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, id int) (Teacher, error)
		GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error)
		NationalCodeExists(ctx context.Context, code string, excludedID int) (bool, error)
		QueryTeachers(ctx context.Context, filter TeacherFilter, ordering []core.DBOrdering) ([]Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		DeleteTeachers(ctx context.Context, ids ...int) (int, error)
	}

	Repositories struct {
		Classes  ClassRepository
		Courses  CourseRepository
		Students StudentRepository
		Teachers TeacherRepository
		Users    user.Repository
	}

	Service interface {
		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter, ordering []core.DBOrdering) ([]Class, error)
		GetClass(ctx context.Context, id int) (Class, error)
		UpdateClass(ctx context.Context, id int, uc UpdateClass) (Class, error)
		DeleteClasses(ctx context.Context, ids ...int) (int, error)

		CreateCourse(ctx context.Context, nc NewCourse) (Course, error)
		QueryCourses(ctx context.Context, filter CourseFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		UpdateCourse(ctx context.Context, id int, uc UpdateCourse) (Course, error)
		DeleteCourses(ctx context.Context, ids ...int) (int, error)

		CreateStudent(ctx context.Context, ns NewStudent) (Student, error)
		ImportStudents(ctx context.Context, classID *int, rows []NewStudent) (ImportResult, error)
		QueryStudents(ctx context.Context, filter StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, id int) (Student, error)
		UpdateStudent(ctx context.Context, id int, us UpdateStudent) (Student, error)
		DeleteStudents(ctx context.Context, ids ...int) (int, error)

		CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error)
		QueryTeachers(ctx context.Context, filter TeacherFilter, ordering []core.DBOrdering) ([]Teacher, error)
		GetTeacher(ctx context.Context, id int) (Teacher, error)
		UpdateTeacher(ctx context.Context, id int, upd UpdateTeacher) (Teacher, error)
		DeleteTeachers(ctx context.Context, ids ...int) (int, error)
	}

	service struct {
		tx       core.Transactor
		repos    Repositories
		validate *validator.Validate
	}

	// ImportResult reports a bulk student import. Rows are 1-based sheet rows.
	ImportResult struct {
		Created  []Student `json:"created"`
		Rejected []RowErr  `json:"rejected"`
	}

	RowErr struct {
		Row   int    `json:"row"`
		Error string `json:"error"`
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repos Repositories, validate *validator.Validate) Service {
	return &service{tx: tx, repos: repos, validate: validate}
}

// Classes

func (svc *service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	return svc.repos.Classes.CreateClass(ctx, Class{Name: nc.Name, Grade: nc.Grade, Capacity: nc.Capacity})
}

func (svc *service) QueryClasses(ctx context.Context, filter ClassFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repos.Classes.QueryClasses(ctx, filter, ordering)
}

func (svc *service) GetClass(ctx context.Context, id int) (Class, error) {
	return svc.repos.Classes.GetClass(ctx, id)
}

func (svc *service) UpdateClass(ctx context.Context, id int, uc UpdateClass) (Class, error) {
	var class Class
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if class, err = svc.repos.Classes.GetClass(ctx, id); err != nil {
			return err
		}
		if uc.Name != nil {
			class.Name = core.CleanString(*uc.Name)
		}
		if uc.Grade != nil {
			class.Grade = core.CleanString(*uc.Grade)
		}
		if uc.Capacity != nil {
			class.Capacity = *uc.Capacity
		}
		class, err = svc.repos.Classes.UpdateClass(ctx, class)
		return err
	})
	return class, err
}

// DeleteClasses leaves students and courses of the deleted classes dangling.
func (svc *service) DeleteClasses(ctx context.Context, ids ...int) (int, error) {
	return svc.repos.Classes.DeleteClasses(ctx, ids...)
}

// Courses

func (svc *service) checkClass(ctx context.Context, classID *int) error {
	if classID == nil {
		return nil
	}
	if _, err := svc.repos.Classes.GetClass(ctx, *classID); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return core.NewValidationError(errClassDoesNotExist, core.FieldError{Field: "class_id", Error: errClassDoesNotExist.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if err := svc.checkClass(ctx, nc.ClassID); err != nil {
		return Course{}, err
	}
	return svc.repos.Courses.CreateCourse(ctx, Course{Name: nc.Name, ClassID: nc.ClassID, Version: 1})
}

func (svc *service) QueryCourses(ctx context.Context, filter CourseFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repos.Courses.QueryCourses(ctx, filter, ordering)
}

func (svc *service) GetCourse(ctx context.Context, id int) (Course, error) {
	return svc.repos.Courses.GetCourse(ctx, id)
}

func (svc *service) UpdateCourse(ctx context.Context, id int, uc UpdateCourse) (Course, error) {
	var course Course
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if course, err = svc.repos.Courses.GetCourse(ctx, id); err != nil {
			return err
		}
		if course.Version != uc.Version {
			return core.NewConflictError("course", id)
		}
		if uc.Name != nil {
			course.Name = core.CleanString(*uc.Name)
		}
		if uc.ClearClass {
			course.ClassID = nil
		} else if uc.ClassID != nil {
			if err = svc.checkClass(ctx, uc.ClassID); err != nil {
				return err
			}
			course.ClassID = uc.ClassID
		}
		course, err = svc.repos.Courses.UpdateCourse(ctx, course)
		return err
	})
	return course, err
}

func (svc *service) DeleteCourses(ctx context.Context, ids ...int) (int, error) {
	return svc.repos.Courses.DeleteCourses(ctx, ids...)
}

// Students

// provisionUser creates the login account owned by a student or a teacher.
func (svc *service) provisionUser(ctx context.Context, name, uname, email, pwd, role string) (user.User, error) {
	if err := svc.repos.Users.CheckUniqueness(ctx, uname, email); err != nil {
		switch err {
		case user.ErrUsernameExists:
			return user.User{}, core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		case user.ErrEmailExists:
			return user.User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return user.User{}, err
	}
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repos.Users.CreateUser(ctx, usr)
}

// syncUser mirrors profile changes onto the owned user. A missing user is ignored.
func (svc *service) syncUser(ctx context.Context, userID, name string, email *string, pwd string) error {
	if userID == "" {
		return nil
	}
	usr, err := svc.repos.Users.GetUser(ctx, user.GetFilter{ID: userID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		return err
	}
	usr.Name = name
	if email != nil {
		e := core.CleanString(*email, true /* lower */)
		if e != usr.Email {
			if err = svc.repos.Users.CheckUniqueness(ctx, "", e, usr); err != nil {
				if err == user.ErrEmailExists {
					return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
				}
				return err
			}
		}
		usr.Email = e
	}
	if pwd != "" {
		if err = usr.SetPassword(pwd); err != nil {
			return errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repos.Users.UpdateUser(ctx, usr)
	return err
}

func (svc *service) deleteUsers(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := svc.repos.Users.DeleteUsersByID(ctx, userIDs...)
	return errors.Wrap(err, "deleting owned users")
}

func (svc *service) checkStudentCode(ctx context.Context, code string, excludedID int) error {
	exists, err := svc.repos.Students.StudentCodeExists(ctx, code, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking student code")
	}
	if exists {
		return core.NewValidationError(ErrStudentCodeExists, core.FieldError{Field: "code", Error: ErrStudentCodeExists.Error()})
	}
	return nil
}

func (svc *service) createStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkClass(ctx, ns.ClassID); err != nil {
		return Student{}, err
	}
	if err := svc.checkStudentCode(ctx, ns.Code, 0); err != nil {
		return Student{}, err
	}
	usr, err := svc.provisionUser(ctx, ns.Name, ns.Username, ns.Email, ns.Password, user.RoleStudent)
	if err != nil {
		return Student{}, err
	}
	return svc.repos.Students.CreateStudent(ctx, Student{
		Name:    ns.Name,
		Code:    ns.Code,
		ClassID: ns.ClassID,
		UserID:  usr.ID,
	})
}

func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	var st Student
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		st, err = svc.createStudent(ctx, ns)
		return err
	})
	return st, err
}

// ImportStudents creates every valid row in one transaction and reports the rejected ones.
// When classID is set it overrides the class of every row.
func (svc *service) ImportStudents(ctx context.Context, classID *int, rows []NewStudent) (ImportResult, error) {
	res := ImportResult{Created: []Student{}, Rejected: []RowErr{}}
	if err := svc.checkClass(ctx, classID); err != nil {
		return res, err
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		seen := make(map[string]int, len(rows))
		for i, ns := range rows {
			row := i + 2 // header is row 1
			if classID != nil {
				ns.ClassID = classID
			}
			if err := ns.Validate(svc.validate); err != nil {
				res.Rejected = append(res.Rejected, RowErr{Row: row, Error: err.Error()})
				continue
			}
			if prev, dup := seen[ns.Code]; dup {
				res.Rejected = append(res.Rejected, RowErr{Row: row, Error: fmt.Sprintf("duplicate of row %d", prev)})
				continue
			}
			seen[ns.Code] = row

			st, err := svc.createStudent(ctx, ns)
			if err != nil {
				if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
					res.Rejected = append(res.Rejected, RowErr{Row: row, Error: vErr.Error()})
					continue
				}
				return err
			}
			res.Created = append(res.Created, st)
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func (svc *service) QueryStudents(ctx context.Context, filter StudentFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repos.Students.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetStudent(ctx context.Context, id int) (Student, error) {
	return svc.repos.Students.GetStudent(ctx, id)
}

func (svc *service) UpdateStudent(ctx context.Context, id int, us UpdateStudent) (Student, error) {
	var st Student
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if st, err = svc.repos.Students.GetStudent(ctx, id); err != nil {
			return err
		}
		if us.Name != nil {
			st.Name = core.CleanString(*us.Name)
		}
		if us.Code != nil {
			code := core.CleanString(*us.Code)
			if err = svc.checkStudentCode(ctx, code, st.ID); err != nil {
				return err
			}
			st.Code = code
		}
		if us.ClearClass {
			st.ClassID = nil
		} else if us.ClassID != nil {
			if err = svc.checkClass(ctx, us.ClassID); err != nil {
				return err
			}
			st.ClassID = us.ClassID
		}
		if st, err = svc.repos.Students.UpdateStudent(ctx, st); err != nil {
			return err
		}
		return svc.syncUser(ctx, st.UserID, st.Name, us.Email, us.Password)
	})
	return st, err
}

// DeleteStudents deletes the students and the users they own.
func (svc *service) DeleteStudents(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var cnt int
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		students, err := svc.repos.Students.QueryStudents(ctx, StudentFilter{IDs: ids}, nil)
		if err != nil {
			return err
		}
		if len(students) == 0 {
			return nil
		}
		stIDs := make([]int, 0, len(students))
		userIDs := make([]string, 0, len(students))
		for _, st := range students {
			stIDs = append(stIDs, st.ID)
			if st.UserID != "" {
				userIDs = append(userIDs, st.UserID)
			}
		}
		if cnt, err = svc.repos.Students.DeleteStudents(ctx, stIDs...); err != nil {
			return err
		}
		return svc.deleteUsers(ctx, userIDs)
	})
	return cnt, err
}

// Teachers

func (svc *service) checkNationalCode(ctx context.Context, code string, excludedID int) error {
	if code == "" {
		return nil
	}
	exists, err := svc.repos.Teachers.NationalCodeExists(ctx, code, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking national code")
	}
	if exists {
		return core.NewValidationError(ErrNationalCodeExists, core.FieldError{Field: "national_code", Error: ErrNationalCodeExists.Error()})
	}
	return nil
}

func (svc *service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	var t Teacher
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.checkNationalCode(ctx, nt.NationalCode, 0); err != nil {
			return err
		}
		usr, err := svc.provisionUser(ctx, nt.Name, nt.Username, nt.Email, nt.Password, user.RoleTeacher)
		if err != nil {
			return err
		}
		t, err = svc.repos.Teachers.CreateTeacher(ctx, Teacher{
			Name:         nt.Name,
			NationalCode: nt.NationalCode,
			Phone:        nt.Phone,
			UserID:       usr.ID,
		})
		return err
	})
	return t, err
}

func (svc *service) QueryTeachers(ctx context.Context, filter TeacherFilter, ordering []core.DBOrdering) ([]Teacher, error) {
	return svc.repos.Teachers.QueryTeachers(ctx, filter, ordering)
}

func (svc *service) GetTeacher(ctx context.Context, id int) (Teacher, error) {
	return svc.repos.Teachers.GetTeacher(ctx, id)
}

func (svc *service) UpdateTeacher(ctx context.Context, id int, upd UpdateTeacher) (Teacher, error) {
	var t Teacher
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if t, err = svc.repos.Teachers.GetTeacher(ctx, id); err != nil {
			return err
		}
		if upd.Name != nil {
			t.Name = core.CleanString(*upd.Name)
		}
		if upd.NationalCode != nil {
			code := core.CleanString(*upd.NationalCode)
			if err = svc.checkNationalCode(ctx, code, t.ID); err != nil {
				return err
			}
			t.NationalCode = code
		}
		if upd.Phone != nil {
			t.Phone = core.CleanString(*upd.Phone)
		}
		if t, err = svc.repos.Teachers.UpdateTeacher(ctx, t); err != nil {
			return err
		}
		return svc.syncUser(ctx, t.UserID, t.Name, upd.Email, upd.Password)
	})
	return t, err
}

// DeleteTeachers deletes the teachers and the users they own.
// Courses keep pointing at the deleted teachers.
func (svc *service) DeleteTeachers(ctx context.Context, ids ...int) (int, error) {
	var cnt int
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		userIDs := make([]string, 0, len(ids))
		found := make([]int, 0, len(ids))
		for _, id := range ids {
			t, err := svc.repos.Teachers.GetTeacher(ctx, id)
			if err != nil {
				if errors.Cause(err) == ErrTeacherNotFound {
					continue
				}
				return err
			}
			found = append(found, t.ID)
			if t.UserID != "" {
				userIDs = append(userIDs, t.UserID)
			}
		}
		if len(found) == 0 {
			return nil
		}
		var err error
		if cnt, err = svc.repos.Teachers.DeleteTeachers(ctx, found...); err != nil {
			return err
		}
		return svc.deleteUsers(ctx, userIDs)
	})
	return cnt, err
}
