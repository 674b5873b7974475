package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core/course"
	"github.com/trezcool/coursemate/core/recommend"
	"github.com/trezcool/coursemate/core/user"
)

type adminApi struct {
	courseSvc *course.Service
	userSvc   *user.Service
	recSvc    *recommend.Service
	validate  *validator.Validate
}

// Dashboard is the admin overview of the catalog & users.
type Dashboard struct {
	course.Stats
	TotalUsers int              `json:"total_users"`
	Model      recommend.Status `json:"model"`
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *adminApi) {
	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/dashboard", api.dashboard)

	ag.POST("/courses", api.addCourse)
	ag.DELETE("/courses/:id", api.deleteCourse)
	ag.POST("/catalog/reload", api.reloadCatalog)

	ag.GET("/model", api.modelStatus)
	ag.POST("/model/train", api.trainModel)
	ag.POST("/model/reload", api.reloadModel)
}

func (api *adminApi) dashboard(ctx echo.Context) error {
	n, err := api.userSvc.Count(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	return ctx.JSON(http.StatusOK, Dashboard{
		Stats:      api.courseSvc.Stats(),
		TotalUsers: n,
		Model:      api.recSvc.Status(),
	})
}

func (api *adminApi) addCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courseSvc.Add(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) deleteCourse(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return course.ErrNotFound
	}
	if err = api.courseSvc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) reloadCatalog(ctx echo.Context) error {
	if err := api.courseSvc.Reload(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "reloading catalog")
	}
	return ctx.JSON(http.StatusOK, api.courseSvc.Stats())
}

func (api *adminApi) modelStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.recSvc.Status())
}

func (api *adminApi) trainModel(ctx echo.Context) error {
	if _, err := api.recSvc.Train(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "training model")
	}
	return ctx.JSON(http.StatusOK, api.recSvc.Status())
}

func (api *adminApi) reloadModel(ctx echo.Context) error {
	if _, err := api.recSvc.LoadArtifact(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "reloading model")
	}
	return ctx.JSON(http.StatusOK, api.recSvc.Status())
}
