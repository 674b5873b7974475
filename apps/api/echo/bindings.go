package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/user"
)

var (
	orderingParam = "ordering"
	topNParam     = "top_n"
)

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
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindUserFilter reads the user list filters from the query string.
// Malformed values are ignored.
func bindUserFilter(ctx echo.Context) user.QueryFilter {
	params := ctx.QueryParams()
	filter := user.QueryFilter{
		Search:     params.Get("search"),
		Roles:      params["role"],
		Profession: params.Get("profession"),
	}
	if v, err := strconv.ParseBool(params.Get("is_active")); err == nil {
		filter.IsActive = &v
	}
	if t, err := time.Parse(time.RFC3339, params.Get("created_from")); err == nil {
		filter.CreatedFrom = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, params.Get("created_to")); err == nil {
		filter.CreatedTo = t.UTC()
	}
	filter.Clean()
	return filter
}

// bindTopN returns the requested result count; 0 (service default) when absent.
func bindTopN(ctx echo.Context) (int, error) {
	val := ctx.QueryParam(topNParam)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: topNParam, Error: "must be a positive integer"})
	}
	return n, nil
}

// intParam parses the path param `name`; a non integer value matches nothing.
func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}
