package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core/stats"
)

type statsApi struct {
	svc stats.Service
}

func registerStatsAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc stats.Service) {
	api := statsApi{svc: svc}

	sg := g.Group("/stats", authed...)
	sg.GET("/overview", api.overview, adminMiddleware())
	sg.GET("/classes", api.classComparison, adminMiddleware())
	sg.GET("/classes/:id", api.classStatistics, roleMiddleware(kindAdmin, kindTeacher))
	sg.GET("/students/:id", api.studentReport)
}

func (api *statsApi) overview(ctx echo.Context) error {
	res, err := api.svc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *statsApi) classComparison(ctx echo.Context) error {
	res, err := api.svc.ClassComparison(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "comparing classes")
	}
	if res == nil {
		res = []stats.ClassSummary{}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *statsApi) classStatistics(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	res, err := api.svc.ClassStatistics(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "computing class statistics")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *statsApi) studentReport(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	res, err := api.svc.StudentReport(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	return ctx.JSON(http.StatusOK, res)
}
