package shap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestSampleBackground(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i*i))
	}

	bg, err := SampleBackground(X, 4, 1)
	require.NoError(t, err)
	r, c := bg.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)

	seen := map[float64]bool{}
	for i := 0; i < r; i++ {
		v := bg.At(i, 0)
		assert.False(t, seen[v], "rows are drawn without replacement")
		seen[v] = true
		assert.Equal(t, v*v, bg.At(i, 1), "row alignment")
	}

	again, err := SampleBackground(X, 4, 1)
	require.NoError(t, err)
	assert.True(t, mat.Equal(bg, again))

	all, err := SampleBackground(X, 50, 1)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, all))

	_, err = SampleBackground(X, 0, 1)
	assert.Error(t, err)
}

func TestKMeansBackground(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 0.1, 0.2, 10, 10.1, 10.2})
	bg, w, err := KMeansBackground(X, 2, 3)
	require.NoError(t, err)
	r, _ := bg.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 6.0, floats.Sum(w))
	assert.ElementsMatch(t, []float64{3, 3}, w)

	got := []float64{bg.At(0, 0), bg.At(1, 0)}
	assert.InDeltaSlice(t, []float64{0.1, 10.1}, []float64{floats.Min(got), floats.Max(got)}, 1e-9)

	small, w, err := KMeansBackground(X, 10, 3)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, small))
	assert.Len(t, w, 6)
}
