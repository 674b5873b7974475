package recommend

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CosineSimilarity computes the symmetric user x user cosine similarity of the rows of m.
// A row with zero norm has similarity 0 with every row, itself included.
func CosineSimilarity(m *mat.Dense) *mat.SymDense {
	if m == nil {
		return nil
	}
	n, _ := m.Dims()
	sim := mat.NewSymDense(n, nil)

	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		norms[i] = floats.Norm(m.RawRowView(i), 2)
	}

	for i := 0; i < n; i++ {
		if norms[i] == 0 {
			continue
		}
		sim.SetSym(i, i, 1)
		u := m.RawRowView(i)
		for j := i + 1; j < n; j++ {
			if norms[j] == 0 {
				continue
			}
			sim.SetSym(i, j, clamp(floats.Dot(u, m.RawRowView(j))/(norms[i]*norms[j])))
		}
	}
	return sim
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
