package recommend

import (
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/trezcool/coursemate/core/dataset"
)

const artifactFormat = 1

// Artifact is the persisted similarity matrix keyed by user id.
type Artifact struct {
	UserIDs    []string
	Similarity *mat.SymDense
	Version    int64
	CreatedAt  time.Time
}

// artifactEnvelope is the on-disk JSON layout; the matrix is gonum's binary encoding (base64 in JSON).
type artifactEnvelope struct {
	Format       int       `json:"format"`
	ModelVersion int64     `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
	UserIDs      []string  `json:"user_ids"`
	Similarity   []byte    `json:"similarity"`
}

// ArtifactOf captures the similarity matrix of a model.
func ArtifactOf(m *Model) *Artifact {
	return &Artifact{
		UserIDs:    m.UserIDs,
		Similarity: m.Similarity,
		Version:    m.Version,
		CreatedAt:  m.TrainedAt,
	}
}

// Encode writes the artifact to w. Values round-trip exactly.
func (a *Artifact) Encode(w io.Writer) error {
	env := artifactEnvelope{
		Format:       artifactFormat,
		ModelVersion: a.Version,
		CreatedAt:    a.CreatedAt,
		UserIDs:      a.UserIDs,
	}
	if len(a.UserIDs) > 0 {
		data, err := mat.DenseCopyOf(a.Similarity).MarshalBinary()
		if err != nil {
			return errors.Wrap(err, "marshalling similarity")
		}
		env.Similarity = data
	}
	return errors.Wrap(json.NewEncoder(w).Encode(env), "encoding artifact")
}

// DecodeArtifact reads an artifact written by Artifact.Encode.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var env artifactEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decoding artifact")
	}
	if env.Format != artifactFormat {
		return nil, errors.Errorf("unsupported artifact format %d", env.Format)
	}

	a := &Artifact{UserIDs: env.UserIDs, Version: env.ModelVersion, CreatedAt: env.CreatedAt}
	n := len(env.UserIDs)
	if n == 0 {
		return a, nil
	}

	var dense mat.Dense
	if err := dense.UnmarshalBinary(env.Similarity); err != nil {
		return nil, errors.Wrap(err, "unmarshalling similarity")
	}
	if rows, cols := dense.Dims(); rows != n || cols != n {
		return nil, errors.Errorf("similarity is %dx%d, want %dx%d", rows, cols, n, n)
	}
	sim := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sim.SetSym(i, j, dense.At(i, j))
		}
	}
	a.Similarity = sim
	return a, nil
}

// SaveArtifact atomically writes the artifact to path.
func SaveArtifact(path string, a *Artifact) error {
	return dataset.WriteFileAtomic(path, func(f *os.File) error { return a.Encode(f) })
}

// LoadArtifact reads the artifact at path.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening artifact")
	}
	defer func() { _ = f.Close() }()
	return DecodeArtifact(f)
}
