package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/calendar"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
	"github.com/MarMar-mg/school-managment-system-sub000/core/stats"
	"github.com/MarMar-mg/school-managment-system-sub000/services/excel"
)

type scoreApi struct {
	svc      score.Service
	stats    stats.Service
	validate *validator.Validate
}

func registerScoreAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc score.Service, statsSvc stats.Service, validate *validator.Validate) {
	api := scoreApi{svc: svc, stats: statsSvc, validate: validate}
	staff := roleMiddleware(kindAdmin, kindTeacher)

	sg := g.Group("/scores", authed...)
	sg.POST("", api.record, staff)
	sg.GET("", api.query)
	sg.GET("/export", api.export, staff)
	sg.DELETE("/:id", api.destroy, staff)
}

func (api *scoreApi) record(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data score.NewScore
	if err := bind(ctx, &data, "NewScore"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Record(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "recording score")
	}
	return ctx.JSON(http.StatusOK, s)
}

// query lists scores. Students only see their own, teachers those of their courses.
func (api *scoreApi) query(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	filter := score.Filter{Period: core.CleanString(ctx.QueryParam("period"))}
	if filter.StudentID, err = queryInt(ctx, "student_id"); err != nil {
		return err
	}
	if filter.CourseID, err = queryInt(ctx, "course_id"); err != nil {
		return err
	}
	if filter.ClassID, err = queryInt(ctx, "class_id"); err != nil {
		return err
	}

	scores, err := api.svc.Query(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if scores == nil {
		scores = []score.Score{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

// export downloads the score sheet of a class as xlsx: ?class_id=1&period=1403-07
func (api *scoreApi) export(ctx echo.Context) error {
	classID, err := queryInt(ctx, "class_id")
	if err != nil {
		return err
	}
	if classID == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "this field is required"})
	}
	period := core.CleanString(ctx.QueryParam("period"))
	if period != "" {
		if _, err := calendar.ParsePeriod(period); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "period", Error: err.Error()})
		}
	}

	sheet, err := api.stats.ClassSheet(ctx.Request().Context(), *classID, period)
	if err != nil {
		return errors.Wrap(err, "building class sheet")
	}
	buf := new(bytes.Buffer)
	if err := excel.WriteSheets(buf, sheet); err != nil {
		return errors.Wrap(err, "writing class sheet")
	}

	filename := fmt.Sprintf("scores-class-%d.xlsx", *classID)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, excel.ContentType, buf.Bytes())
}

func (api *scoreApi) destroy(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "deleting score")
	}
	return ctx.NoContent(http.StatusNoContent)
}
