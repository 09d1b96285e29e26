package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func invalidParam(name string) error {
	return core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
}

// paramID reads an integer path parameter. Malformed ids are reported as not found.
func paramID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(ctx echo.Context, name string) (*int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return nil, invalidParam(name)
	}
	return &i, nil
}

// queryIDs reads a repeated integer query parameter: ?id=1&id=2
func queryIDs(ctx echo.Context, name string) ([]int, error) {
	vals := ctx.QueryParams()[name]
	ids := make([]int, 0, len(vals))
	for _, v := range vals {
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalidParam(name)
		}
		ids = append(ids, i)
	}
	return ids, nil
}

func bindPage(ctx echo.Context) (core.Page, error) {
	var page core.Page
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return page, err
	}
	offset, err := queryInt(ctx, "offset")
	if err != nil {
		return page, err
	}
	if limit != nil {
		page.Limit = *limit
	}
	if offset != nil {
		page.Offset = *offset
	}
	return page, nil
}

func bind(ctx echo.Context, data interface{}, name string) error {
	if err := ctx.Bind(data); err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return core.NewValidationError(errors.Errorf("%v", he.Message))
		}
		return errors.Wrap(err, "binding to "+name)
	}
	return nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)
