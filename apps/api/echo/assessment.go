package echoapi

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
	"github.com/MarMar-mg/school-managment-system-sub000/core/grading"
)

type assessmentApi struct {
	kind     assessment.Kind
	svc      assessment.Service
	grading  grading.Service
	validate *validator.Validate
}

// registerAssessmentAPI mounts the routes of one assessment kind under /exams or /exercises.
func registerAssessmentAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	kind assessment.Kind,
	svc assessment.Service,
	gradingSvc grading.Service,
	validate *validator.Validate,
) {
	api := assessmentApi{kind: kind, svc: svc, grading: gradingSvc, validate: validate}
	staff := roleMiddleware(kindAdmin, kindTeacher)
	student := roleMiddleware(kindStudent)

	ag := g.Group("/"+string(kind)+"s", authed...)
	ag.POST("", api.create, staff)
	ag.GET("", api.query)
	ag.GET("/mine", api.mine, student)
	ag.GET("/submissions/:sid/answer", api.downloadAnswer)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, staff)
	ag.DELETE("/:id", api.destroy, staff)
	ag.PUT("/:id/attachment", api.uploadAttachment, staff)
	ag.GET("/:id/attachment", api.downloadAttachment)
	ag.POST("/:id/submit", api.submit, student)
	ag.GET("/:id/submissions", api.submissions, staff)
	ag.POST("/:id/scores", api.submitScore, staff)
	ag.PUT("/:id/scores", api.batchSubmitScores, staff)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data assessment.NewAssignment
	if err := bind(ctx, &data, "NewAssignment"); err != nil {
		return err
	}
	if err := data.Validate(api.kind, api.validate); err != nil {
		return err
	}
	a, err := api.svc.Create(ctx.Request().Context(), actor, api.kind, data)
	if err != nil {
		return errors.Wrap(err, "creating "+string(api.kind))
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) query(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var filter assessment.Filter
	if filter.CourseID, err = queryInt(ctx, "course_id"); err != nil {
		return err
	}
	if filter.ClassID, err = queryInt(ctx, "class_id"); err != nil {
		return err
	}

	items, err := api.svc.Query(ctx.Request().Context(), actor, api.kind, filter)
	if err != nil {
		return errors.Wrap(err, "querying "+string(api.kind)+"s")
	}
	if items == nil {
		items = []assessment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, items)
}

// mine lists the assignments of the student's class with their status: ?status=upcoming|active|passed
func (api *assessmentApi) mine(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	status := ctx.QueryParam("status")
	switch status {
	case "", assessment.StatusUpcoming, assessment.StatusActive, assessment.StatusPassed:
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be one of upcoming, active, passed"})
	}

	items, err := api.svc.StudentAssignments(ctx.Request().Context(), actor, api.kind, status)
	if err != nil {
		return errors.Wrap(err, "querying student "+string(api.kind)+"s")
	}
	if items == nil {
		items = []assessment.StudentAssignment{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	a, err := api.svc.Get(ctx.Request().Context(), actor, api.kind, id)
	if err != nil {
		return errors.Wrap(err, "getting "+string(api.kind))
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data assessment.UpdateAssignment
	if err := bind(ctx, &data, "UpdateAssignment"); err != nil {
		return err
	}
	if err := data.Validate(api.kind, api.validate); err != nil {
		return err
	}
	a, err := api.svc.Update(ctx.Request().Context(), actor, api.kind, id, data)
	if err != nil {
		return errors.Wrap(err, "updating "+string(api.kind))
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, api.kind, id); err != nil {
		return errors.Wrap(err, "deleting "+string(api.kind))
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) uploadAttachment(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	f, filename, err := formFile(ctx, "file")
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := api.svc.SetAttachment(ctx.Request().Context(), actor, api.kind, id, filename, f)
	if err != nil {
		return errors.Wrap(err, "setting attachment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) downloadAttachment(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	rc, key, err := api.svc.OpenAttachment(ctx.Request().Context(), actor, api.kind, id)
	if err != nil {
		return errors.Wrap(err, "opening attachment")
	}
	return sendFile(ctx, rc, key)
}

// submit takes the answer of the authenticated student: a "file" and an optional "description".
func (api *assessmentApi) submit(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	f, filename, err := formFile(ctx, "file")
	if err != nil {
		return err
	}
	defer f.Close()

	desc := core.CleanString(ctx.FormValue("description"))
	sub, err := api.svc.Submit(ctx.Request().Context(), actor, api.kind, id, desc, filename, f)
	if err != nil {
		return errors.Wrap(err, "submitting answer")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assessmentApi) downloadAnswer(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	sid, err := paramID(ctx, "sid")
	if err != nil {
		return err
	}
	rc, key, err := api.svc.OpenAnswer(ctx.Request().Context(), actor, api.kind, sid)
	if err != nil {
		return errors.Wrap(err, "opening answer")
	}
	return sendFile(ctx, rc, key)
}

func (api *assessmentApi) submissions(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	views, err := api.svc.ListSubmissions(ctx.Request().Context(), actor, api.kind, id)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if views == nil {
		views = []assessment.SubmissionView{}
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *assessmentApi) submitScore(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data grading.ScoreInput
	if err := bind(ctx, &data, "ScoreInput"); err != nil {
		return err
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	data.Kind = api.kind
	data.AssignmentID = id

	sub, err := api.grading.SubmitScore(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "submitting score")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assessmentApi) batchSubmitScores(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data BatchScoresRequest
	if err := bind(ctx, &data, "BatchScoresRequest"); err != nil {
		return err
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	subs, err := api.grading.BatchSubmitScores(ctx.Request().Context(), actor, api.kind, id, data.Scores)
	if err != nil {
		return errors.Wrap(err, "submitting scores")
	}
	if subs == nil {
		subs = []assessment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

// formFile opens a required multipart file.
func formFile(ctx echo.Context, field string) (io.ReadCloser, string, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, "", core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", errors.Wrap(err, "opening upload")
	}
	return f, fh.Filename, nil
}

// sendFile streams rc as an attachment named after the last element of key.
func sendFile(ctx echo.Context, rc io.ReadCloser, key string) error {
	defer rc.Close()
	name := path.Base(key)
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return ctx.Stream(http.StatusOK, ctype, rc)
}

type BatchScoresRequest struct {
	Scores []grading.ScoreUpdate `json:"scores" validate:"required,dive"`
}
