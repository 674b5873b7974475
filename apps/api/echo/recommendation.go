package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core/course"
	"github.com/trezcool/coursemate/core/recommend"
	"github.com/trezcool/coursemate/core/user"
)

type recommendationApi struct {
	svc       *recommend.Service
	courseSvc *course.Service
	userSvc   *user.Service
}

type (
	ProfessionRecommendations struct {
		Profession string          `json:"profession"`
		Courses    []course.Course `json:"courses"`
	}

	SimilarRecommendations struct {
		UserID       string          `json:"user_id"`
		ModelVersion int64           `json:"model_version"`
		CourseIDs    []string        `json:"course_ids"`
		Courses      []course.Course `json:"courses"` // catalog entries of CourseIDs, when known
	}

	UserNeighbors struct {
		UserID    string               `json:"user_id"`
		Neighbors []recommend.Neighbor `json:"neighbors"`
	}
)

func registerRecommendationAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *recommendationApi) {
	rg := g.Group("/recommendations", jwt)
	rg.GET("", api.byProfession)
	rg.GET("/similar", api.similar)
	rg.GET("/users/:user_id", api.forUser, adminMiddleware())
	rg.GET("/users/:user_id/neighbors", api.neighbors, adminMiddleware())
}

func (api *recommendationApi) byProfession(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, ProfessionRecommendations{
		Profession: usr.Profession,
		Courses:    api.courseSvc.ForProfession(usr.Profession),
	})
}

// similar recommends to the caller what their most similar users rated best.
func (api *recommendationApi) similar(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.respond(ctx, usr.RatingsUserID())
}

func (api *recommendationApi) forUser(ctx echo.Context) error {
	return api.respond(ctx, ctx.Param("user_id"))
}

func (api *recommendationApi) respond(ctx echo.Context, userID string) error {
	topN, err := bindTopN(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.RecommendFor(ctx.Request().Context(), userID, topN)
	if err != nil {
		return errors.Wrap(err, "recommending")
	}
	ids := rec.CourseIDs
	if ids == nil {
		ids = []string{}
	}
	return ctx.JSON(http.StatusOK, SimilarRecommendations{
		UserID:       rec.UserID,
		ModelVersion: rec.ModelVersion,
		CourseIDs:    ids,
		Courses:      api.courseSvc.GetMany(catalogIDs(ids)),
	})
}

// neighbors lists the users most similar to user_id, as the recommender sees them.
func (api *recommendationApi) neighbors(ctx echo.Context) error {
	userID := recommend.NormalizeID(ctx.Param("user_id"))
	neighbors, err := api.svc.Neighbors(userID)
	if err != nil {
		return errors.Wrap(err, "listing neighbors")
	}
	return ctx.JSON(http.StatusOK, UserNeighbors{UserID: userID, Neighbors: neighbors})
}

// catalogIDs keeps the rating course ids that are catalog ids.
func catalogIDs(ids []string) []int {
	res := make([]int, 0, len(ids))
	for _, id := range ids {
		if n, err := strconv.Atoi(id); err == nil {
			res = append(res, n)
		}
	}
	return res
}
