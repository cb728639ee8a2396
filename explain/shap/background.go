package shap

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/sklearn/cluster"
	"gonum.org/v1/gonum/mat"
)

// SampleBackground は X から n 行を非復元抽出する。n が行数以上なら X の複製
func SampleBackground(X mat.Matrix, n int, seed int64) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if n < 1 {
		return nil, errors.NewValidationError("background_size", "must be at least 1", n)
	}
	if rows == 0 {
		return nil, errors.NewValueError("SampleBackground", "no rows to sample")
	}
	if n >= rows {
		return mat.DenseCopyOf(X), nil
	}

	rng := rand.New(rand.NewPCG(uint64(seed), 0x853c49e6748fea9b))
	perm := rng.Perm(rows)[:n]
	out := mat.NewDense(n, cols, nil)
	for i, r := range perm {
		out.SetRow(i, mat.Row(nil, r, X))
	}
	return out, nil
}

// KMeansBackground は X を k 個のクラスタ中心に要約する。
// 重みは各クラスタの行数で、WithBackgroundWeights にそのまま渡せる。
func KMeansBackground(X mat.Matrix, k int, seed int64) (*mat.Dense, []float64, error) {
	rows, _ := X.Dims()
	if k < 1 {
		return nil, nil, errors.NewValidationError("background_size", "must be at least 1", k)
	}
	if rows == 0 {
		return nil, nil, errors.NewValueError("KMeansBackground", "no rows to summarize")
	}
	if k >= rows {
		w := make([]float64, rows)
		for i := range w {
			w[i] = 1
		}
		return mat.DenseCopyOf(X), w, nil
	}

	km := cluster.NewKMeans(cluster.WithKMeansNClusters(k), cluster.WithKMeansRandomState(seed))
	if err := km.Fit(X, nil); err != nil {
		return nil, nil, errors.Wrap(err, "KMeansBackground")
	}

	centers := km.ClusterCenters()
	counts := km.Counts()
	// 空のクラスタは落とす
	var keep []int
	for c, n := range counts {
		if n > 0 {
			keep = append(keep, c)
		}
	}
	_, cols := centers.Dims()
	out := mat.NewDense(len(keep), cols, nil)
	weights := make([]float64, len(keep))
	for i, c := range keep {
		out.SetRow(i, centers.RawRowView(c))
		weights[i] = float64(counts[c])
	}
	return out, weights, nil
}
