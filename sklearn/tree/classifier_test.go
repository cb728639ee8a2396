package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ageHours は (年齢, 週労働時間) の2特徴量で、40歳以上かつ40時間以上が高所得
func ageHours() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		22, 20,
		25, 35,
		31, 10,
		35, 30,
		44, 45,
		52, 50,
		47, 60,
		58, 42,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_Fit(t *testing.T) {
	X, y := ageHours()
	xor := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	xorY := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	tests := []struct {
		name string
		X, y *mat.Dense
		opts []Option
	}{
		{"gini", X, y, []Option{WithCriterion("gini"), WithMaxDepth(5)}},
		{"entropy", X, y, []Option{WithCriterion("entropy"), WithMaxDepth(3)}},
		{"xor needs a zero-gain root split", xor, xorY, []Option{WithMaxDepth(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			require.NoError(t, dt.Fit(tt.X, tt.y))
			assert.Equal(t, 1.0, dt.Score(tt.X, tt.y))
			assert.True(t, dt.IsFitted())
		})
	}
}

func TestDecisionTreeClassifier_PredictUnseen(t *testing.T) {
	X, y := ageHours()
	dt := NewDecisionTreeClassifier(WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{
		19, 15,
		61, 55,
	}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []int{0, 1, 2}, dt.Classes())

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	require.Equal(t, 9, r)
	require.Equal(t, 3, c)

	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-9, "row %d", i)
		assert.GreaterOrEqual(t, floats.Min(row), 0.0)
		assert.Equal(t, int(y.At(i, 0)), floats.MaxIdx(row), "row %d", i)
	}
}

func TestDecisionTreeClassifier_FeatureImportances(t *testing.T) {
	// 特徴量0だけがクラスを決める
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	imp := dt.GetFeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)
	assert.Equal(t, 0, floats.MaxIdx(imp))
	assert.Zero(t, imp[1])
	assert.Zero(t, imp[2])
}

func TestDecisionTreeClassifier_Constraints(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	shallow := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.GetDepth(), 2)

	leafy := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, leafy.Fit(X, y))
	for _, n := range leafy.Tree().Nodes {
		if n.IsLeaf() {
			assert.GreaterOrEqual(t, n.Cover, 2.0)
		}
	}
	assert.LessOrEqual(t, leafy.GetNLeaves(), 8)
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.Equal(t, 1, params["min_samples_leaf"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
		"random_state":      int64(9),
	}))
	assert.Equal(t, "entropy", dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 4, dt.minSamplesSplit)
	assert.Equal(t, 2, dt.minSamplesLeaf)
	assert.Equal(t, int64(9), dt.randomState)
}
