package assessment

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

var (
	ErrSubmissionNotFound error = &core.NotFoundError{Entity: "submission"}
	ErrNoAttachment       error = &core.NotFoundError{Entity: "attachment"}

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	// Repository stores exams and exercises in separate tables selected by Kind.
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		// GetAssignment returns a *core.NotFoundError named after kind when absent.
		GetAssignment(ctx context.Context, kind Kind, id int) (Assignment, error)
		QueryAssignments(ctx context.Context, kind Kind, filter Filter) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignments(ctx context.Context, kind Kind, ids ...int) (int, error)

		CreateSubmission(ctx context.Context, kind Kind, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, kind Kind, id int) (Submission, error)
		// GetStudentSubmission returns ErrSubmissionNotFound when the student has no submission yet.
		GetStudentSubmission(ctx context.Context, kind Kind, assignmentID, studentID int) (Submission, error)
		QuerySubmissions(ctx context.Context, kind Kind, filter SubmissionFilter) ([]Submission, error)
		// UpdateSubmission saves sub only if the stored version still equals sub.Version,
		// else it returns a *core.ConflictError. The returned Submission carries the new version.
		UpdateSubmission(ctx context.Context, kind Kind, sub Submission) (Submission, error)
	}

	Service interface {
		Create(ctx context.Context, actor access.Actor, kind Kind, na NewAssignment) (Assignment, error)
		Query(ctx context.Context, actor access.Actor, kind Kind, filter Filter) ([]Assignment, error)
		Get(ctx context.Context, actor access.Actor, kind Kind, id int) (Assignment, error)
		Update(ctx context.Context, actor access.Actor, kind Kind, id int, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, actor access.Actor, kind Kind, id int) error

		SetAttachment(ctx context.Context, actor access.Actor, kind Kind, id int, filename string, r io.Reader) (Assignment, error)
		OpenAttachment(ctx context.Context, actor access.Actor, kind Kind, id int) (io.ReadCloser, string, error)

		// Submit stores the student's answer within the assignment window.
		Submit(ctx context.Context, actor access.Actor, kind Kind, id int, description, filename string, r io.Reader) (Submission, error)
		OpenAnswer(ctx context.Context, actor access.Actor, kind Kind, submissionID int) (io.ReadCloser, string, error)
		// ListSubmissions lists every student of the assignment's class, submitted or not.
		ListSubmissions(ctx context.Context, actor access.Actor, kind Kind, id int) ([]SubmissionView, error)
		// StudentAssignments lists the assignments of the student's class. An empty status means all.
		StudentAssignments(ctx context.Context, actor access.Actor, kind Kind, status string) ([]StudentAssignment, error)
	}

	Deps struct {
		Tx         core.Transactor
		Repo       Repository
		Courses    school.CourseRepository
		Students   school.StudentRepository
		Dispatcher notification.Dispatcher
		Files      core.FileStore
		Logger     core.Logger
	}

	service struct {
		Deps
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

// teachable loads the course of an assignment and checks actor may manage it.
func (svc *service) teachable(ctx context.Context, actor access.Actor, courseID int) (school.Course, error) {
	if _, ok := actor.(access.StudentActor); ok {
		return school.Course{}, errStudentsForbidden
	}
	course, err := svc.Courses.GetCourse(ctx, courseID)
	if err != nil {
		return school.Course{}, err
	}
	if !access.CanTeach(actor, course) {
		return school.Course{}, errNotYourCourse
	}
	return course, nil
}

// readable checks actor may see a.
func (svc *service) readable(ctx context.Context, actor access.Actor, a Assignment) error {
	switch actor := actor.(type) {
	case access.StudentActor:
		if a.ClassID == nil || actor.Student.ClassID == nil || *a.ClassID != *actor.Student.ClassID {
			return errNotInClass
		}
		return nil
	default:
		_, err := svc.teachable(ctx, actor, a.CourseID)
		return err
	}
}

func (svc *service) classUserIDs(ctx context.Context, classID *int) ([]string, error) {
	if classID == nil {
		return nil, nil
	}
	students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{ClassID: classID}, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(students))
	for _, st := range students {
		if st.UserID != "" {
			ids = append(ids, st.UserID)
		}
	}
	return ids, nil
}

func createdMessage(a Assignment, course school.Course) notification.Message {
	msg := notification.Message{
		Body:        fmt.Sprintf("%q was published for %s", a.Title, course.Name),
		RelatedID:   core.IntPtr(a.ID),
		RelatedType: string(a.Kind),
	}
	if a.Kind == KindExam {
		msg.Title = "New exam"
		msg.Type = notification.TypeExamCreated
	} else {
		msg.Title = "New exercise"
		msg.Type = notification.TypeExerciseCreated
	}
	return msg
}

func (svc *service) Create(ctx context.Context, actor access.Actor, kind Kind, na NewAssignment) (Assignment, error) {
	var (
		a     Assignment
		notes []notification.Notification
	)
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := svc.teachable(ctx, actor, na.CourseID)
		if err != nil {
			return err
		}
		a, err = svc.Repo.CreateAssignment(ctx, Assignment{
			Kind:        kind,
			Title:       na.Title,
			Description: na.Description,
			CourseID:    course.ID,
			ClassID:     course.ClassID,
			StartAt:     na.startAt.UTC(),
			EndAt:       na.endAt.UTC(),
			MaxScore:    na.MaxScore,
			CreatedAt:   nowFunc(),
		})
		if err != nil {
			return err
		}
		userIDs, err := svc.classUserIDs(ctx, course.ClassID)
		if err != nil {
			return err
		}
		notes, err = svc.Dispatcher.NotifyMany(ctx, userIDs, createdMessage(a, course))
		return err
	})
	if err != nil {
		return Assignment{}, err
	}
	svc.Dispatcher.Deliver(ctx, notes...)
	return a, nil
}

func (svc *service) Query(ctx context.Context, actor access.Actor, kind Kind, filter Filter) ([]Assignment, error) {
	switch actor := actor.(type) {
	case access.StudentActor:
		if actor.Student.ClassID == nil {
			return []Assignment{}, nil
		}
		filter.ClassID = actor.Student.ClassID
	case access.TeacherActor:
		courses, err := svc.Courses.QueryCourses(ctx, school.CourseFilter{TeacherID: core.IntPtr(actor.Teacher.ID)}, nil)
		if err != nil {
			return nil, err
		}
		if len(courses) == 0 {
			return []Assignment{}, nil
		}
		filter.CourseIDs = make([]int, 0, len(courses))
		for _, c := range courses {
			filter.CourseIDs = append(filter.CourseIDs, c.ID)
		}
	}
	return svc.Repo.QueryAssignments(ctx, kind, filter)
}

func (svc *service) Get(ctx context.Context, actor access.Actor, kind Kind, id int) (Assignment, error) {
	a, err := svc.Repo.GetAssignment(ctx, kind, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.readable(ctx, actor, a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (svc *service) Update(ctx context.Context, actor access.Actor, kind Kind, id int, ua UpdateAssignment) (Assignment, error) {
	var a Assignment
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = svc.Repo.GetAssignment(ctx, kind, id); err != nil {
			return err
		}
		if _, err = svc.teachable(ctx, actor, a.CourseID); err != nil {
			return err
		}
		if ua.Title != nil {
			a.Title = core.CleanString(*ua.Title)
		}
		if ua.Description != nil {
			a.Description = core.CleanString(*ua.Description)
		}
		if !ua.startAt.IsZero() {
			a.StartAt = ua.startAt.UTC()
			a.EndAt = ua.endAt.UTC()
		}
		if ua.ClearMaxScore {
			a.MaxScore = nil
		} else if ua.MaxScore != nil {
			a.MaxScore = ua.MaxScore
		}
		a, err = svc.Repo.UpdateAssignment(ctx, a)
		return err
	})
	return a, err
}

// Delete removes the assignment, its submissions and their files.
func (svc *service) Delete(ctx context.Context, actor access.Actor, kind Kind, id int) error {
	var files []string
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := svc.Repo.GetAssignment(ctx, kind, id)
		if err != nil {
			return err
		}
		if _, err = svc.teachable(ctx, actor, a.CourseID); err != nil {
			return err
		}
		subs, err := svc.Repo.QuerySubmissions(ctx, kind, SubmissionFilter{AssignmentID: core.IntPtr(id)})
		if err != nil {
			return err
		}
		if a.Attachment != "" {
			files = append(files, a.Attachment)
		}
		for _, sub := range subs {
			if sub.AnswerFile != nil {
				files = append(files, *sub.AnswerFile)
			}
		}
		_, err = svc.Repo.DeleteAssignments(ctx, kind, id)
		return err
	})
	if err != nil {
		return err
	}
	svc.removeFiles(ctx, files...)
	return nil
}

func (svc *service) removeFiles(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := svc.Files.Delete(ctx, key); err != nil {
			svc.Logger.Warn("deleting file", err, map[string]interface{}{"key": key})
		}
	}
}

func filePrefix(kind Kind, id int, what string) string {
	return fmt.Sprintf("%s/%d/%s", kind, id, what)
}

func (svc *service) SetAttachment(ctx context.Context, actor access.Actor, kind Kind, id int, filename string, r io.Reader) (Assignment, error) {
	a, err := svc.Repo.GetAssignment(ctx, kind, id)
	if err != nil {
		return Assignment{}, err
	}
	if _, err = svc.teachable(ctx, actor, a.CourseID); err != nil {
		return Assignment{}, err
	}
	key, err := svc.Files.Save(ctx, filePrefix(kind, id, "attachment"), filename, r)
	if err != nil {
		return Assignment{}, err
	}

	old := a.Attachment
	a.Attachment = key
	if a, err = svc.Repo.UpdateAssignment(ctx, a); err != nil {
		svc.removeFiles(ctx, key)
		return Assignment{}, err
	}
	if old != "" {
		svc.removeFiles(ctx, old)
	}
	return a, nil
}

func (svc *service) OpenAttachment(ctx context.Context, actor access.Actor, kind Kind, id int) (io.ReadCloser, string, error) {
	a, err := svc.Get(ctx, actor, kind, id)
	if err != nil {
		return nil, "", err
	}
	if a.Attachment == "" {
		return nil, "", ErrNoAttachment
	}
	rc, err := svc.Files.Open(ctx, a.Attachment)
	return rc, a.Attachment, err
}

func (svc *service) Submit(ctx context.Context, actor access.Actor, kind Kind, id int, description, filename string, r io.Reader) (Submission, error) {
	stActor, ok := actor.(access.StudentActor)
	if !ok {
		return Submission{}, core.NewAuthorizationError("only students can submit answers")
	}
	a, err := svc.Get(ctx, actor, kind, id)
	if err != nil {
		return Submission{}, err
	}
	now := nowFunc()
	switch a.Status(now) {
	case StatusUpcoming:
		return Submission{}, core.NewValidationError(errWindowNotOpen)
	case StatusPassed:
		return Submission{}, core.NewValidationError(errWindowClosed)
	}

	key, err := svc.Files.Save(ctx, filePrefix(kind, id, "answers"), filename, r)
	if err != nil {
		return Submission{}, err
	}

	var (
		sub Submission
		old string
	)
	err = svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = svc.Repo.GetStudentSubmission(ctx, kind, a.ID, stActor.Student.ID)
		switch {
		case err == nil:
			if sub.AnswerFile != nil {
				old = *sub.AnswerFile
			}
			sub.AnswerFile = &key
			sub.Description = core.CleanString(description)
			sub.SubmittedAt = &now
			sub.UpdatedAt = now
			sub, err = svc.Repo.UpdateSubmission(ctx, kind, sub)
		case errors.Cause(err) == ErrSubmissionNotFound:
			sub, err = svc.Repo.CreateSubmission(ctx, kind, Submission{
				AssignmentID: a.ID,
				StudentID:    stActor.Student.ID,
				AnswerFile:   &key,
				Description:  core.CleanString(description),
				SubmittedAt:  &now,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		return err
	})
	if err != nil {
		svc.removeFiles(ctx, key)
		return Submission{}, err
	}
	if old != "" {
		svc.removeFiles(ctx, old)
	}
	return sub, nil
}

func (svc *service) OpenAnswer(ctx context.Context, actor access.Actor, kind Kind, submissionID int) (io.ReadCloser, string, error) {
	sub, err := svc.Repo.GetSubmission(ctx, kind, submissionID)
	if err != nil {
		return nil, "", err
	}
	if stActor, ok := actor.(access.StudentActor); ok {
		if sub.StudentID != stActor.Student.ID {
			return nil, "", ErrSubmissionNotFound
		}
	} else {
		a, err := svc.Repo.GetAssignment(ctx, kind, sub.AssignmentID)
		if err != nil {
			return nil, "", err
		}
		if _, err = svc.teachable(ctx, actor, a.CourseID); err != nil {
			return nil, "", err
		}
	}
	if sub.AnswerFile == nil {
		return nil, "", ErrNoAttachment
	}
	rc, err := svc.Files.Open(ctx, *sub.AnswerFile)
	return rc, *sub.AnswerFile, err
}

func (svc *service) ListSubmissions(ctx context.Context, actor access.Actor, kind Kind, id int) ([]SubmissionView, error) {
	a, err := svc.Repo.GetAssignment(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if _, err = svc.teachable(ctx, actor, a.CourseID); err != nil {
		return nil, err
	}

	subs, err := svc.Repo.QuerySubmissions(ctx, kind, SubmissionFilter{AssignmentID: core.IntPtr(a.ID)})
	if err != nil {
		return nil, err
	}
	byStudent := make(map[int]Submission, len(subs))
	for _, sub := range subs {
		byStudent[sub.StudentID] = sub
	}

	var roster []school.Student
	if a.ClassID != nil {
		if roster, err = svc.Students.QueryStudents(ctx, school.StudentFilter{ClassID: a.ClassID}, nil); err != nil {
			return nil, err
		}
	}

	views := make([]SubmissionView, 0, len(roster)+len(subs))
	inRoster := make(map[int]bool, len(roster))
	for _, st := range roster {
		inRoster[st.ID] = true
		view := SubmissionView{Student: st}
		if sub, ok := byStudent[st.ID]; ok {
			view.Submission = &sub
		}
		views = append(views, view)
	}

	// students who left the class keep their submissions
	var others []int
	for _, sub := range subs {
		if !inRoster[sub.StudentID] {
			others = append(others, sub.StudentID)
		}
	}
	if len(others) > 0 {
		students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{IDs: others}, nil)
		if err != nil {
			return nil, err
		}
		for _, st := range students {
			sub := byStudent[st.ID]
			views = append(views, SubmissionView{Student: st, Submission: &sub})
		}
	}
	return views, nil
}

func (svc *service) StudentAssignments(ctx context.Context, actor access.Actor, kind Kind, status string) ([]StudentAssignment, error) {
	stActor, ok := actor.(access.StudentActor)
	if !ok {
		return nil, core.NewAuthorizationError("only students have assignments")
	}
	res := []StudentAssignment{}
	if stActor.Student.ClassID == nil {
		return res, nil
	}

	assignments, err := svc.Repo.QueryAssignments(ctx, kind, Filter{ClassID: stActor.Student.ClassID})
	if err != nil {
		return nil, err
	}
	subs, err := svc.Repo.QuerySubmissions(ctx, kind, SubmissionFilter{StudentID: core.IntPtr(stActor.Student.ID)})
	if err != nil {
		return nil, err
	}
	byAssignment := make(map[int]Submission, len(subs))
	for _, sub := range subs {
		byAssignment[sub.AssignmentID] = sub
	}

	now := nowFunc()
	for _, a := range assignments {
		sa := StudentAssignment{Assignment: a, Status: a.Status(now)}
		if status != "" && sa.Status != status {
			continue
		}
		if sub, ok := byAssignment[a.ID]; ok {
			sa.Submission = &sub
		}
		res = append(res, sa)
	}
	return res, nil
}
