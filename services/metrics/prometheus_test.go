package metricsvc

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveTraining(50*time.Millisecond, 3, 4, nil)
	m.ObserveTraining(time.Millisecond, 0, 0, errors.New("boom"))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.trainings.WithLabelValues("success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.trainings.WithLabelValues("error")))
	// a failed training keeps the previous model gauges
	assert.Equal(t, 3.0, promtest.ToFloat64(m.modelUsers))
	assert.Equal(t, 4.0, promtest.ToFloat64(m.modelCourses))

	m.ObserveRecommendation(false, nil)
	m.ObserveRecommendation(true, nil)
	m.ObserveRecommendation(true, nil)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.recommendations.WithLabelValues("miss", "success")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.recommendations.WithLabelValues("hit", "success")))

	m.ObserveRequest(http.MethodGet, "/api/courses/:id", http.StatusOK, time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.requests.WithLabelValues("GET", "/api/courses/:id", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "coursemate_recommender_trainings_total")
	assert.Contains(t, string(body), "go_goroutines")
}
