package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/roster"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	"github.com/MarMar-mg/school-managment-system-sub000/services/excel"
)

type schoolApi struct {
	svc           school.Service
	roster        roster.Service
	validate      *validator.Validate
	maxUploadSize int64
}

func registerSchoolAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc school.Service,
	rosterSvc roster.Service,
	validate *validator.Validate,
	maxUploadSize int64,
) {
	api := schoolApi{svc: svc, roster: rosterSvc, validate: validate, maxUploadSize: maxUploadSize}
	staff := roleMiddleware(kindAdmin, kindTeacher)
	admin := adminMiddleware()

	cg := g.Group("/classes", authed...)
	cg.POST("", api.createClass, admin)
	cg.GET("", api.queryClasses, staff)
	cg.DELETE("", api.destroyClasses, admin)
	cg.GET("/:id", api.retrieveClass, staff)
	cg.PUT("/:id", api.updateClass, admin)
	cg.DELETE("/:id", api.destroyClass, admin)

	crg := g.Group("/courses", authed...)
	crg.POST("", api.createCourse, admin)
	crg.GET("", api.queryCourses, staff)
	crg.DELETE("", api.destroyCourses, admin)
	crg.GET("/:id", api.retrieveCourse, staff)
	crg.PUT("/:id", api.updateCourse, admin)
	crg.DELETE("/:id", api.destroyCourse, admin)
	crg.PUT("/:id/teacher", api.assignTeacher, admin)
	crg.DELETE("/:id/teacher", api.unassignTeacher, admin)

	sg := g.Group("/students", authed...)
	sg.POST("", api.createStudent, admin)
	sg.POST("/import", api.importStudents, admin)
	sg.GET("", api.queryStudents, staff)
	sg.DELETE("", api.destroyStudents, admin)
	sg.GET("/:id", api.retrieveStudent, staff)
	sg.PUT("/:id", api.updateStudent, admin)
	sg.DELETE("/:id", api.destroyStudent, admin)

	tg := g.Group("/teachers", authed...)
	tg.POST("", api.createTeacher, admin)
	tg.GET("", api.queryTeachers, admin)
	tg.DELETE("", api.destroyTeachers, admin)
	tg.GET("/:id", api.retrieveTeacher, admin)
	tg.PUT("/:id", api.updateTeacher, admin)
	tg.DELETE("/:id", api.destroyTeacher, admin)
}

// Classes

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := bind(ctx, &data, "NewClass"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	class, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter := school.ClassFilter{Search: core.CleanString(ctx.QueryParam("search"))}

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	class, err := api.svc.GetClass(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *schoolApi) updateClass(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data school.UpdateClass
	if err := bind(ctx, &data, "UpdateClass"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	class, err := api.svc.UpdateClass(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *schoolApi) destroyClass(ctx echo.Context) error {
	return api.destroyOne(ctx, "class", api.svc.DeleteClasses)
}

func (api *schoolApi) destroyClasses(ctx echo.Context) error {
	return api.destroyMany(ctx, "classes", api.svc.DeleteClasses)
}

// Courses

func (api *schoolApi) createCourse(ctx echo.Context) error {
	var data school.NewCourse
	if err := bind(ctx, &data, "NewCourse"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	course, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

// queryCourses lists courses. Teachers only see the courses they teach.
func (api *schoolApi) queryCourses(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	filter := school.CourseFilter{Search: core.CleanString(ctx.QueryParam("search"))}
	if filter.ClassID, err = queryInt(ctx, "class_id"); err != nil {
		return err
	}
	if filter.TeacherID, err = queryInt(ctx, "teacher_id"); err != nil {
		return err
	}
	if t, ok := actor.(access.TeacherActor); ok {
		filter.TeacherID = core.IntPtr(t.Teacher.ID)
	}

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []school.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *schoolApi) retrieveCourse(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	course, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if !access.CanTeach(actor, course) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *schoolApi) updateCourse(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data school.UpdateCourse
	if err := bind(ctx, &data, "UpdateCourse"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	course, err := api.svc.UpdateCourse(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *schoolApi) destroyCourse(ctx echo.Context) error {
	return api.destroyOne(ctx, "course", api.svc.DeleteCourses)
}

func (api *schoolApi) destroyCourses(ctx echo.Context) error {
	return api.destroyMany(ctx, "courses", api.svc.DeleteCourses)
}

func (api *schoolApi) assignTeacher(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data AssignTeacherRequest
	if err := bind(ctx, &data, "AssignTeacherRequest"); err != nil {
		return err
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	course, err := api.roster.AssignTeacher(ctx.Request().Context(), id, data.TeacherID)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *schoolApi) unassignTeacher(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	course, err := api.roster.UnassignTeacher(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "unassigning teacher")
	}
	return ctx.JSON(http.StatusOK, course)
}

// Students

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := bind(ctx, &data, "NewStudent"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	st, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

// importStudents reads the rows of an uploaded xlsx sheet (multipart field "file").
// The optional "class_id" form value places every student in that class.
func (api *schoolApi) importStudents(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	if fh.Size > api.maxUploadSize {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file is too large"})
	}

	var classID *int
	if val := ctx.FormValue("class_id"); val != "" {
		id, err := strconv.Atoi(val)
		if err != nil {
			return invalidParam("class_id")
		}
		classID = &id
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	rows, err := excel.ReadStudents(f)
	if err != nil {
		return err
	}
	res, err := api.svc.ImportStudents(ctx.Request().Context(), classID, rows)
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	var err error
	filter := school.StudentFilter{Search: core.CleanString(ctx.QueryParam("search"))}
	if filter.ClassID, err = queryInt(ctx, "class_id"); err != nil {
		return err
	}

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	st, err := api.svc.GetStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data school.UpdateStudent
	if err := bind(ctx, &data, "UpdateStudent"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	st, err := api.svc.UpdateStudent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	return api.destroyOne(ctx, "student", api.svc.DeleteStudents)
}

func (api *schoolApi) destroyStudents(ctx echo.Context) error {
	return api.destroyMany(ctx, "students", api.svc.DeleteStudents)
}

// Teachers

func (api *schoolApi) createTeacher(ctx echo.Context) error {
	var data school.NewTeacher
	if err := bind(ctx, &data, "NewTeacher"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.svc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *schoolApi) queryTeachers(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter := school.TeacherFilter{Search: core.CleanString(ctx.QueryParam("search"))}

	teachers, err := api.svc.QueryTeachers(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []school.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) retrieveTeacher(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	t, err := api.svc.GetTeacher(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) updateTeacher(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data school.UpdateTeacher
	if err := bind(ctx, &data, "UpdateTeacher"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.svc.UpdateTeacher(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) destroyTeacher(ctx echo.Context) error {
	return api.destroyOne(ctx, "teacher", api.svc.DeleteTeachers)
}

func (api *schoolApi) destroyTeachers(ctx echo.Context) error {
	return api.destroyMany(ctx, "teachers", api.svc.DeleteTeachers)
}

type deleteFunc func(ctx context.Context, ids ...int) (int, error)

func (api *schoolApi) destroyOne(ctx echo.Context, entity string, del deleteFunc) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	n, err := del(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "deleting "+entity)
	}
	if n == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

// destroyMany deletes the entities listed in ?id=1&id=2. Unknown ids are ignored.
func (api *schoolApi) destroyMany(ctx echo.Context, entities string, del deleteFunc) error {
	ids, err := queryIDs(ctx, "id")
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err := del(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting "+entities)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Profile

type profileApi struct {
	svc school.Service
}

func registerProfileAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc school.Service) {
	api := profileApi{svc: svc}
	g.GET("/me", api.retrieve, authed...)
}

// retrieve returns the authenticated user with its role profile.
func (api *profileApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	res := ProfileResponse{User: actor.User(), Kind: actorKind(actor)}
	switch a := actor.(type) {
	case access.StudentActor:
		st := a.Student
		res.Student = &st
		if st.ClassID != nil {
			class, err := api.svc.GetClass(ctx.Request().Context(), *st.ClassID)
			if err == nil {
				res.Class = &class
			} else if !core.IsNotFound(err) {
				return errors.Wrap(err, "getting class")
			}
		}
	case access.TeacherActor:
		t := a.Teacher
		res.Teacher = &t
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	AssignTeacherRequest struct {
		TeacherID int `json:"teacher_id" validate:"required"`
	}

	ProfileResponse struct {
		User    user.User       `json:"user"`
		Kind    string          `json:"kind"`
		Student *school.Student `json:"student,omitempty"`
		Class   *school.Class   `json:"class,omitempty"`
		Teacher *school.Teacher `json:"teacher,omitempty"`
	}
)
