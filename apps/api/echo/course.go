package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, api *courseApi) {
	cg := g.Group("/courses")
	cg.GET("", api.search)
	cg.GET("/:id", api.retrieve)
}

// search matches the `search` query param; no query, no results.
func (api *courseApi) search(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Search(ctx.QueryParam("search")))
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return course.ErrNotFound
	}
	c, err := api.svc.Get(id)
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}
