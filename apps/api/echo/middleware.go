package echoapi

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/services/ratelimit"
)

// roleMiddleware only lets through actors of the listed kinds: "admin", "teacher" or "student".
func roleMiddleware(kinds ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := contextActor(ctx)
			if err != nil {
				return err
			}
			kind := actorKind(actor)
			for _, k := range kinds {
				if k == kind {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(kindAdmin)
}

const (
	kindAdmin   = "admin"
	kindTeacher = "teacher"
	kindStudent = "student"
)

func actorKind(actor access.Actor) string {
	switch actor.(type) {
	case access.AdminActor:
		return kindAdmin
	case access.TeacherActor:
		return kindTeacher
	case access.StudentActor:
		return kindStudent
	}
	return ""
}

// rateLimitMiddleware throttles requests per route and client IP.
// A failing limiter lets the request through.
func rateLimitMiddleware(limiter ratelimit.Limiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil {
				return next(ctx)
			}
			key := ctx.Path() + ":" + ctx.RealIP()
			ok, err := limiter.Allow(ctx.Request().Context(), key)
			if err != nil {
				logger.Error(fmt.Sprintf("rate limiter: %v", err), err)
				return next(ctx)
			}
			if !ok {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
