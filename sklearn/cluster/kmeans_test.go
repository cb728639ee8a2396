package cluster

import (
	"testing"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func twoBlobs() *mat.Dense {
	return mat.NewDense(8, 2, []float64{
		0, 0,
		0.2, 0.1,
		0.1, 0.3,
		0.3, 0.2,
		10, 10,
		10.2, 10.1,
		10.1, 9.8,
		9.9, 10.3,
	})
}

func TestKMeans_SeparatesBlobs(t *testing.T) {
	km := NewKMeans(WithKMeansNClusters(2), WithKMeansRandomState(42))
	require.NoError(t, km.Fit(twoBlobs(), nil))

	labels := km.Labels()
	for i := 1; i < 4; i++ {
		assert.Equal(t, labels[0], labels[i])
	}
	for i := 5; i < 8; i++ {
		assert.Equal(t, labels[4], labels[i])
	}
	assert.NotEqual(t, labels[0], labels[4])

	assert.Equal(t, []int{4, 4}, km.Counts())

	centers := km.ClusterCenters()
	r, c := centers.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	low := centers.RawRowView(labels[0])
	assert.InDelta(t, 0.15, low[0], 1e-9)
	assert.InDelta(t, 0.15, low[1], 1e-9)
	assert.Greater(t, km.Inertia(), 0.0)
}

func TestKMeans_Predict(t *testing.T) {
	km := NewKMeans(WithKMeansNClusters(2), WithKMeansRandomState(1))
	require.NoError(t, km.Fit(twoBlobs(), nil))

	pred, err := km.Predict(mat.NewDense(2, 2, []float64{0.5, 0.5, 9, 9}))
	require.NoError(t, err)
	labels := km.Labels()
	assert.Equal(t, float64(labels[0]), pred.At(0, 0))
	assert.Equal(t, float64(labels[4]), pred.At(1, 0))

	_, err = km.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestKMeans_Deterministic(t *testing.T) {
	a := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(7))
	b := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(7))
	require.NoError(t, a.Fit(twoBlobs(), nil))
	require.NoError(t, b.Fit(twoBlobs(), nil))
	assert.True(t, mat.Equal(a.ClusterCenters(), b.ClusterCenters()))
	assert.Equal(t, a.Labels(), b.Labels())
}

func TestKMeans_DuplicateRows(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	km := NewKMeans(WithKMeansNClusters(2))
	require.NoError(t, km.Fit(X, nil))
	assert.Equal(t, 0.0, km.Inertia())
	counts := km.Counts()
	assert.Equal(t, 4, counts[0]+counts[1])
}

func TestKMeans_CentersAreMeansOfLabels(t *testing.T) {
	X := mat.NewDense(9, 1, []float64{0, 1, 2, 3, 4, 5, 11, 12, 30})
	for _, maxIter := range []int{1, 2, 300} {
		for seed := int64(0); seed < 5; seed++ {
			km := NewKMeans(WithKMeansNClusters(3), WithKMeansMaxIter(maxIter), WithKMeansNInit(1), WithKMeansRandomState(seed))
			require.NoError(t, km.Fit(X, nil))

			labels := km.Labels()
			sums := make([]float64, 3)
			counts := make([]int, 3)
			for i, l := range labels {
				sums[l] += X.At(i, 0)
				counts[l]++
			}
			assert.Equal(t, counts, km.Counts(), "max_iter %d seed %d", maxIter, seed)

			centers := km.ClusterCenters()
			inertia := 0.0
			for c := 0; c < 3; c++ {
				if counts[c] > 0 {
					assert.InDelta(t, sums[c]/float64(counts[c]), centers.At(c, 0), 1e-12, "max_iter %d seed %d cluster %d", maxIter, seed, c)
				}
			}
			for i, l := range labels {
				d := X.At(i, 0) - centers.At(l, 0)
				inertia += d * d
			}
			assert.InDelta(t, inertia, km.Inertia(), 1e-9)
		}
	}
}

func TestKMeans_Errors(t *testing.T) {
	tests := []struct {
		name string
		km   *KMeans
		X    mat.Matrix
	}{
		{"too few rows", NewKMeans(WithKMeansNClusters(5)), mat.NewDense(3, 1, []float64{1, 2, 3})},
		{"zero clusters", NewKMeans(WithKMeansNClusters(0)), mat.NewDense(3, 1, []float64{1, 2, 3})},
		{"zero iterations", NewKMeans(WithKMeansNClusters(1), WithKMeansMaxIter(0)), mat.NewDense(3, 1, []float64{1, 2, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.km.Fit(tt.X, nil))
			assert.False(t, tt.km.IsFitted())
		})
	}

	_, err := NewKMeans().Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
