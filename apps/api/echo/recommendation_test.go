package echoapi

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_recommendationApi_similar(t *testing.T) {
	env := setup(t)
	students, admin := env.seedUsers(t)
	studentToken := env.token(t, students[0])
	adminToken := env.token(t, admin)

	rec := env.do(t, http.MethodGet, "/v1/recommendations/similar", "", nil)
	assertError(t, rec, http.StatusUnauthorized, "missing or malformed jwt")

	rec = env.do(t, http.MethodGet, "/v1/recommendations/similar", studentToken, nil)
	assertError(t, rec, http.StatusServiceUnavailable, "recommendation model not ready")

	_, err := env.recSvc.Train(ctxBg)
	require.NoError(t, err)

	t.Run("caller", func(t *testing.T) {
		want, err := env.recSvc.Model().Recommend("1", 2, env.conf.Recommender.SimilarUsers)
		require.NoError(t, err)

		for i := 0; i < 2; i++ { // second call is served from the cache
			rec := env.do(t, http.MethodGet, "/v1/recommendations/similar?top_n=2", studentToken, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var res SimilarRecommendations
			decode(t, rec, &res)
			assert.Equal(t, "1", res.UserID)
			assert.Equal(t, int64(1), res.ModelVersion)
			assert.Equal(t, want, res.CourseIDs)
			require.Len(t, res.Courses, 2)
			assert.Equal(t, want[0], strconv.Itoa(res.Courses[0].ID))
		}

		rec := env.do(t, http.MethodGet, "/metrics", "", nil)
		assert.Contains(t, rec.Body.String(), `coursemate_recommender_recommendations_total{cache="hit",outcome="success"} 1`)
		assert.Contains(t, rec.Body.String(), `coursemate_recommender_recommendations_total{cache="miss",outcome="success"} 1`)
	})

	t.Run("invalid top_n", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/recommendations/similar?top_n=zero", studentToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var errs map[string]string
		decode(t, rec, &errs)
		assert.Equal(t, map[string]string{"top_n": "must be a positive integer"}, errs)
	})

	t.Run("caller without ratings", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/recommendations/similar", adminToken, nil)
		assertError(t, rec, http.StatusNotFound, "unknown user")
	})

	t.Run("admin lookup", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/recommendations/users/3", studentToken, nil)
		assertError(t, rec, http.StatusForbidden, "permission denied")

		rec = env.do(t, http.MethodGet, "/v1/recommendations/users/3?top_n=1", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res SimilarRecommendations
		decode(t, rec, &res)
		assert.Equal(t, "3", res.UserID)
		assert.Len(t, res.CourseIDs, 1)

		rec = env.do(t, http.MethodGet, "/v1/recommendations/users/99", adminToken, nil)
		assertError(t, rec, http.StatusNotFound, "unknown user")
	})

	t.Run("admin lookup: float-looking id", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/recommendations/users/3.0?top_n=1", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res SimilarRecommendations
		decode(t, rec, &res)
		assert.Equal(t, "3", res.UserID)
		assert.Len(t, res.CourseIDs, 1)
	})

	t.Run("version of the serving model", func(t *testing.T) {
		_, err := env.recSvc.Train(ctxBg)
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/v1/recommendations/similar", studentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res SimilarRecommendations
		decode(t, rec, &res)
		assert.Equal(t, int64(2), res.ModelVersion)
	})
}

func Test_recommendationApi_neighbors(t *testing.T) {
	env := setup(t)
	students, admin := env.seedUsers(t)
	adminToken := env.token(t, admin)

	rec := env.do(t, http.MethodGet, "/v1/recommendations/users/1/neighbors", env.token(t, students[0]), nil)
	assertError(t, rec, http.StatusForbidden, "permission denied")

	rec = env.do(t, http.MethodGet, "/v1/recommendations/users/1/neighbors", adminToken, nil)
	assertError(t, rec, http.StatusServiceUnavailable, "recommendation model not ready")

	_, err := env.recSvc.Train(ctxBg)
	require.NoError(t, err)

	want, err := env.recSvc.Neighbors("1")
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/v1/recommendations/users/1.0/neighbors", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res UserNeighbors
	decode(t, rec, &res)
	assert.Equal(t, "1", res.UserID)
	assert.Len(t, res.Neighbors, 2)
	assert.Equal(t, want, res.Neighbors)

	rec = env.do(t, http.MethodGet, "/v1/recommendations/users/99/neighbors", adminToken, nil)
	assertError(t, rec, http.StatusNotFound, "unknown user")
}

func Test_recommendationApi_byProfession(t *testing.T) {
	env := setup(t)
	students, _ := env.seedUsers(t)

	rec := env.do(t, http.MethodGet, "/v1/recommendations", env.token(t, students[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res ProfessionRecommendations
	decode(t, rec, &res)
	assert.Empty(t, res.Profession)
	assert.Len(t, res.Courses, 5) // whole catalog, smaller than the sample size

	nurse := students[1]
	nurse.Profession = "Nursing"
	_, err := env.repo.UpdateUser(ctxBg, nurse)
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/v1/recommendations", env.token(t, nurse), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.Equal(t, "Nursing", res.Profession)
	ids := make([]int, 0, len(res.Courses))
	for _, c := range res.Courses {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int{2, 4}, ids)
}
