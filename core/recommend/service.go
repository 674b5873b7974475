// Package recommend implements user-based collaborative filtering over course ratings:
// a standardized user x course matrix, cosine user similarities and top-N neighbor recommendations.
package recommend

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core"
)

type (
	// Config holds the recommender tunables.
	Config struct {
		RatingsPath  string
		ArtifactPath string // empty: models are not persisted
		SimilarUsers int    // neighbors considered per recommendation
		DefaultTopN  int
		MaxTopN      int
	}

	// ResultCache stores recommendation results. Keys embed the model version.
	ResultCache interface {
		Get(ctx context.Context, key string) ([]string, bool, error)
		Set(ctx context.Context, key string, courseIDs []string) error
	}

	// Observer receives training & serving events (metrics).
	Observer interface {
		ObserveTraining(duration time.Duration, users, courses int, err error)
		ObserveRecommendation(cacheHit bool, err error)
	}

	// Status describes the current model.
	Status struct {
		Ready     bool      `json:"ready"`
		Version   int64     `json:"version"`
		TrainedAt time.Time `json:"trained_at"`
		Users     int       `json:"users"`
		Courses   int       `json:"courses"`
		Ratings   int       `json:"ratings"`
	}

	// Service owns the current Model. Readers always see a complete model:
	// training builds a new one off to the side and swaps it in atomically.
	Service struct {
		conf     Config
		cache    ResultCache
		observer Observer
		logger   core.Logger

		model   atomic.Pointer[Model]
		version atomic.Int64
		trainMu sync.Mutex // one training run at a time
	}
)

// DefaultConfig returns the defaults used when a field is left empty.
func DefaultConfig() Config {
	return Config{SimilarUsers: 5, DefaultTopN: 5, MaxTopN: 50}
}

// ConfigFrom extracts the recommender section of the app config.
func ConfigFrom(conf *core.Config) Config {
	return Config{
		RatingsPath:  conf.Recommender.RatingsPath,
		ArtifactPath: conf.Recommender.ArtifactPath,
		SimilarUsers: conf.Recommender.SimilarUsers,
		DefaultTopN:  conf.Recommender.DefaultTopN,
		MaxTopN:      conf.Recommender.MaxTopN,
	}
}

// NewService creates a Service without a model; cache & observer may be nil.
func NewService(conf Config, cache ResultCache, observer Observer, logger core.Logger) *Service {
	def := DefaultConfig()
	if conf.SimilarUsers <= 0 {
		conf.SimilarUsers = def.SimilarUsers
	}
	if conf.DefaultTopN <= 0 {
		conf.DefaultTopN = def.DefaultTopN
	}
	if conf.MaxTopN <= 0 {
		conf.MaxTopN = def.MaxTopN
	}
	return &Service{conf: conf, cache: cache, observer: observer, logger: logger}
}

func (svc *Service) Config() Config { return svc.conf }

// Model returns the current model, nil before the first Train/Load.
func (svc *Service) Model() *Model {
	return svc.model.Load()
}

// swap makes m current; callers hold trainMu and have set m.Version to the next version.
func (svc *Service) swap(m *Model) {
	svc.version.Store(m.Version)
	svc.model.Store(m)
}

func (svc *Service) nextVersion() int64 {
	return svc.version.Load() + 1
}

// Train rebuilds the model from the ratings file, persists its artifact and swaps it in.
// A model whose artifact cannot be saved never goes live.
func (svc *Service) Train(ctx context.Context) (*Model, error) {
	svc.trainMu.Lock()
	defer svc.trainMu.Unlock()

	start := time.Now()
	m, err := svc.train(ctx)
	if svc.observer != nil {
		var users, courses int
		if m != nil {
			users, courses = len(m.UserIDs), m.CourseCount
		}
		svc.observer.ObserveTraining(time.Since(start), users, courses, err)
	}
	return m, err
}

func (svc *Service) train(ctx context.Context) (*Model, error) {
	ratings, err := LoadRatingsFile(svc.conf.RatingsPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading ratings")
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	m := Train(ratings)
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	m.Version = svc.nextVersion()

	if svc.conf.ArtifactPath != "" {
		if err = SaveArtifact(svc.conf.ArtifactPath, ArtifactOf(m)); err != nil {
			return nil, errors.Wrap(err, "saving artifact")
		}
	}
	svc.swap(m)
	svc.logInfo(fmt.Sprintf("model v%d trained: %d users, %d courses, %d ratings", m.Version, len(m.UserIDs), m.CourseCount, m.RatingCount))
	return m, nil
}

// LoadArtifact swaps in the model persisted at ArtifactPath, served from the current ratings file.
func (svc *Service) LoadArtifact(ctx context.Context) (*Model, error) {
	svc.trainMu.Lock()
	defer svc.trainMu.Unlock()

	a, err := LoadArtifact(svc.conf.ArtifactPath)
	if err != nil {
		return nil, err
	}
	ratings, err := LoadRatingsFile(svc.conf.RatingsPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading ratings")
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	m := NewModel(a.UserIDs, a.Similarity, ratings)
	m.TrainedAt = a.CreatedAt
	m.Version = svc.nextVersion()
	svc.swap(m)
	svc.logInfo(fmt.Sprintf("model v%d loaded from %s: %d users", m.Version, svc.conf.ArtifactPath, len(m.UserIDs)))
	return m, nil
}

// Load brings up a model at startup: from the artifact unless trainFirst, training when there is none.
func (svc *Service) Load(ctx context.Context, trainFirst bool) (*Model, error) {
	if !trainFirst && svc.conf.ArtifactPath != "" {
		m, err := svc.LoadArtifact(ctx)
		if err == nil {
			return m, nil
		}
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrap(err, "loading artifact")
		}
	}
	return svc.Train(ctx)
}

// Recommendation is the result of Service.Recommend, tied to the model that produced it.
type Recommendation struct {
	UserID       string
	ModelVersion int64
	CourseIDs    []string
}

// Recommend returns up to topN course ids for the ratings user userID.
// topN <= 0 means DefaultTopN; it is capped to MaxTopN.
func (svc *Service) Recommend(ctx context.Context, userID string, topN int) ([]string, error) {
	rec, err := svc.RecommendFor(ctx, userID, topN)
	if err != nil {
		return nil, err
	}
	return rec.CourseIDs, nil
}

// RecommendFor is Recommend, also reporting the normalized user id and the version of the serving model.
func (svc *Service) RecommendFor(ctx context.Context, userID string, topN int) (rec Recommendation, err error) {
	var hit bool
	if svc.observer != nil {
		defer func() { svc.observer.ObserveRecommendation(hit, err) }()
	}

	m := svc.Model()
	if m == nil {
		return rec, ErrNoModel
	}
	if topN <= 0 {
		topN = svc.conf.DefaultTopN
	}
	if topN > svc.conf.MaxTopN {
		topN = svc.conf.MaxTopN
	}
	rec.UserID = NormalizeID(userID)
	rec.ModelVersion = m.Version

	key := fmt.Sprintf("rec:%s:k%d:%s:%d", m.ID, svc.conf.SimilarUsers, rec.UserID, topN)
	if svc.cache != nil {
		if cached, ok, cErr := svc.cache.Get(ctx, key); cErr != nil {
			svc.logWarn("reading recommendation cache", cErr)
		} else if ok {
			hit = true
			rec.CourseIDs = cached
			return rec, nil
		}
	}

	ids, err := m.Recommend(rec.UserID, topN, svc.conf.SimilarUsers)
	if err != nil {
		return rec, err
	}
	if svc.cache != nil {
		if cErr := svc.cache.Set(ctx, key, ids); cErr != nil {
			svc.logWarn("writing recommendation cache", cErr)
		}
	}
	rec.CourseIDs = ids
	return rec, nil
}

// Neighbors exposes the similar users of userID in the current model.
func (svc *Service) Neighbors(userID string) ([]Neighbor, error) {
	m := svc.Model()
	if m == nil {
		return nil, ErrNoModel
	}
	return m.Neighbors(NormalizeID(userID), svc.conf.SimilarUsers)
}

func (svc *Service) Status() Status {
	m := svc.Model()
	if m == nil {
		return Status{}
	}
	return Status{
		Ready:     true,
		Version:   m.Version,
		TrainedAt: m.TrainedAt,
		Users:     len(m.UserIDs),
		Courses:   m.CourseCount,
		Ratings:   m.RatingCount,
	}
}

func (svc *Service) logInfo(msg string) {
	if svc.logger != nil {
		svc.logger.Info(msg)
	}
}

func (svc *Service) logWarn(msg string, err error) {
	if svc.logger != nil {
		svc.logger.Warn(msg, err)
	}
}
