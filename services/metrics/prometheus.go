// Package metricsvc exposes the application metrics in the prometheus format.
package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/coursemate/core/recommend"
)

const namespace = "coursemate"

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	trainings     *prometheus.CounterVec
	trainDuration prometheus.Histogram
	modelUsers    prometheus.Gauge
	modelCourses  prometheus.Gauge

	recommendations *prometheus.CounterVec
}

var _ recommend.Observer = (*Metrics)(nil)

// New registers all collectors on a dedicated registry, along with the go runtime & process ones.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled, by route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		trainings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "trainings_total",
			Help:      "Model trainings, by outcome.",
		}, []string{"outcome"}),
		trainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "training_duration_seconds",
			Help:      "Time spent training the similarity model.",
			Buckets:   prometheus.ExponentialBuckets(.01, 4, 8),
		}),
		modelUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "model_users",
			Help:      "Users in the served model.",
		}),
		modelCourses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "model_courses",
			Help:      "Courses in the served model.",
		}),
		recommendations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "recommendations_total",
			Help:      "Recommendation requests, by cache usage and outcome.",
		}, []string{"cache", "outcome"}),
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one handled request. `route` is the matched route pattern, never the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTraining(duration time.Duration, users, courses int, err error) {
	m.trainDuration.Observe(duration.Seconds())
	if err != nil {
		m.trainings.WithLabelValues("error").Inc()
		return
	}
	m.trainings.WithLabelValues("success").Inc()
	m.modelUsers.Set(float64(users))
	m.modelCourses.Set(float64(courses))
}

func (m *Metrics) ObserveRecommendation(cacheHit bool, err error) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.recommendations.WithLabelValues(cache, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
