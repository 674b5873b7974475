package recommend

import (
	"encoding/binary"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownUser is returned for a user absent from the similarity matrix.
	ErrUnknownUser = errors.New("unknown user")
	// ErrNoModel is returned when no model has been trained or loaded yet.
	ErrNoModel = errors.New("recommendation model not ready")
)

// Neighbor is a user similar to the queried one.
type Neighbor struct {
	UserID     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// Model is an immutable trained recommender: the user similarity matrix plus the ratings it serves from.
// It is safe for concurrent use.
type Model struct {
	// ID fingerprints the similarity matrix and the served ratings: equal models share an ID
	// across processes, so it is safe to key shared caches on.
	ID          string
	Version     int64
	TrainedAt   time.Time
	UserIDs     []string
	Similarity  *mat.SymDense // nil when UserIDs is empty
	CourseCount int
	RatingCount int

	userIndex     map[string]int
	ratingsByUser map[string][]Rating
}

// Train builds a model from raw ratings: pivot, standardize, cosine similarity.
func Train(ratings []Rating) *Model {
	matrix := BuildMatrix(ratings)
	sim := CosineSimilarity(Normalize(matrix.Values))
	return NewModel(matrix.UserIDs, sim, ratings)
}

// NewModel assembles a model out of a similarity matrix keyed by userIDs and the ratings to serve.
// Ratings of users absent from userIDs are ignored.
func NewModel(userIDs []string, sim *mat.SymDense, ratings []Rating) *Model {
	m := &Model{
		TrainedAt:     time.Now().UTC(),
		UserIDs:       userIDs,
		Similarity:    sim,
		userIndex:     indexOf(userIDs),
		ratingsByUser: make(map[string][]Rating, len(userIDs)),
	}
	courses := make(map[string]struct{})
	for _, r := range ratings {
		if _, ok := m.userIndex[r.UserID]; !ok {
			continue
		}
		m.ratingsByUser[r.UserID] = append(m.ratingsByUser[r.UserID], r)
		courses[r.CourseID] = struct{}{}
		m.RatingCount++
	}
	m.CourseCount = len(courses)
	m.ID = m.fingerprint()
	return m
}

func (m *Model) fingerprint() string {
	d := xxhash.New()
	var buf [8]byte
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	for i, uid := range m.UserIDs {
		_, _ = d.WriteString(uid)
		_, _ = d.WriteString("\x00")
		for j := range m.UserIDs {
			writeFloat(m.Similarity.At(i, j))
		}
		for _, r := range m.ratingsByUser[uid] {
			_, _ = d.WriteString(r.CourseID)
			_, _ = d.WriteString("\x00")
			writeFloat(r.Value)
		}
		_, _ = d.WriteString("\x01")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// SimilarityOf returns sim(u, v).
func (m *Model) SimilarityOf(u, v string) (float64, error) {
	i, ok := m.userIndex[u]
	if !ok {
		return 0, ErrUnknownUser
	}
	j, ok := m.userIndex[v]
	if !ok {
		return 0, ErrUnknownUser
	}
	return m.Similarity.At(i, j), nil
}

// Neighbors returns the k users most similar to userID, itself excluded.
// Ties are broken by user id order.
func (m *Model) Neighbors(userID string, k int) ([]Neighbor, error) {
	i, ok := m.userIndex[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	neighbors := make([]Neighbor, 0, len(m.UserIDs)-1)
	for j, uid := range m.UserIDs {
		if j == i {
			continue
		}
		neighbors = append(neighbors, Neighbor{UserID: uid, Similarity: m.Similarity.At(i, j)})
	}
	// UserIDs is sorted, so a stable sort keeps id order among equal similarities.
	sort.SliceStable(neighbors, func(a, b int) bool { return neighbors[a].Similarity > neighbors[b].Similarity })
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Recommend returns up to topN course ids for userID out of the ratings of its k nearest neighbors,
// ordered by rating desc, then neighbor rank, then course id. Each course appears once.
func (m *Model) Recommend(userID string, topN, k int) ([]string, error) {
	neighbors, err := m.Neighbors(userID, k)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		return []string{}, nil
	}

	type candidate struct {
		Rating
		rank int
	}
	candidates := make([]candidate, 0)
	for rank, n := range neighbors {
		for _, r := range m.ratingsByUser[n.UserID] {
			candidates = append(candidates, candidate{Rating: r, rank: rank})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.Value != cb.Value {
			return ca.Value > cb.Value
		}
		if ca.rank != cb.rank {
			return ca.rank < cb.rank
		}
		return compareIDs(ca.CourseID, cb.CourseID) < 0
	})

	seen := make(map[string]struct{}, topN)
	courseIDs := make([]string, 0, topN)
	for _, c := range candidates {
		if _, ok := seen[c.CourseID]; ok {
			continue
		}
		seen[c.CourseID] = struct{}{}
		courseIDs = append(courseIDs, c.CourseID)
		if len(courseIDs) == topN {
			break
		}
	}
	return courseIDs, nil
}
