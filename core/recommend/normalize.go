package recommend

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// zeroVariance is the std below which a column is considered constant.
const zeroVariance = 1e-12

// Normalize standardizes every column of m to zero mean and unit population variance.
// Constant columns become all zeros. m is left untouched; nil yields nil.
func Normalize(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		mean, std := stat.PopMeanStdDev(col, nil)
		constant := std < zeroVariance*math.Max(1, math.Abs(mean))
		for i, v := range col {
			if constant {
				out.Set(i, j, 0)
				continue
			}
			out.Set(i, j, (v-mean)/std)
		}
	}
	return out
}
