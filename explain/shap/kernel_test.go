package shap

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/sklearn/linear_model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func linearPredict(w []float64, b float64) PredictFunc {
	return func(X mat.Matrix) ([]float64, error) {
		r, c := X.Dims()
		out := make([]float64, r)
		for i := 0; i < r; i++ {
			out[i] = b
			for j := 0; j < c; j++ {
				out[i] += w[j] * X.At(i, j)
			}
		}
		return out, nil
	}
}

func randomMatrix(rng *rand.Rand, r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}
	return m
}

func columnMeans(m *mat.Dense, weights []float64) []float64 {
	r, c := m.Dims()
	if weights == nil {
		weights = make([]float64, r)
		for i := range weights {
			weights[i] = 1
		}
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out[j] += weights[i] * m.At(i, j)
		}
		out[j] /= total
	}
	return out
}

func TestKernelExplainer_LinearExact(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	w := []float64{1.5, -2, 0.5, 3}
	bg := randomMatrix(rng, 12, 4)
	X := randomMatrix(rng, 5, 4)

	exp, err := NewKernelExplainer(linearPredict(w, 0.25), bg, WithSeed(9))
	require.NoError(t, err)

	res, err := exp.Explain(context.Background(), X)
	require.NoError(t, err)

	mu := columnMeans(bg, nil)
	for i := 0; i < 5; i++ {
		for j := range w {
			assert.InDelta(t, w[j]*(X.At(i, j)-mu[j]), res.Values.At(i, j), 1e-9, "row %d feature %d", i, j)
		}
	}
	assert.Less(t, res.MaxAdditivityGap(), 1e-9)
	assert.Equal(t, "kernel", res.Explainer)
}

func TestKernelExplainer_LinearSampled(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	m := 12
	w := make([]float64, m)
	for j := range w {
		w[j] = float64(j) - 5.5
	}
	bg := randomMatrix(rng, 6, m)
	X := randomMatrix(rng, 2, m)

	// 2^12 - 2 > 300 なのでサンプリングになる
	exp, err := NewKernelExplainer(linearPredict(w, 0), bg, WithNSamples(300), WithSeed(3))
	require.NoError(t, err)
	res, err := exp.Explain(context.Background(), X)
	require.NoError(t, err)

	mu := columnMeans(bg, nil)
	for i := 0; i < 2; i++ {
		for j := range w {
			assert.InDelta(t, w[j]*(X.At(i, j)-mu[j]), res.Values.At(i, j), 1e-8)
		}
	}
}

func TestKernelExplainer_ConstantFeatureIsZero(t *testing.T) {
	bg := mat.NewDense(3, 3, []float64{
		1, 5, 0,
		2, 5, 1,
		3, 5, 2,
	})
	predict := func(X mat.Matrix) ([]float64, error) {
		r, _ := X.Dims()
		out := make([]float64, r)
		for i := range out {
			out[i] = X.At(i, 0)*X.At(i, 2) + 10*X.At(i, 1)
		}
		return out, nil
	}
	exp, err := NewKernelExplainer(predict, bg)
	require.NoError(t, err)

	res, err := exp.Explain(context.Background(), mat.NewDense(1, 3, []float64{4, 5, 3}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Values.At(0, 1))
	assert.Less(t, res.MaxAdditivityGap(), 1e-9)

	// 2特徴量の厳密な Shapley 値
	assert.InDelta(t, 11.0/3, res.Values.At(0, 0), 1e-9)
	assert.InDelta(t, 17.0/3, res.Values.At(0, 2), 1e-9)
}

func TestKernelExplainer_SingleVaryingFeature(t *testing.T) {
	bg := mat.NewDense(2, 2, []float64{0, 1, 0, 3})
	exp, err := NewKernelExplainer(linearPredict([]float64{2, 1}, 0), bg)
	require.NoError(t, err)
	res, err := exp.Explain(context.Background(), mat.NewDense(1, 2, []float64{0, 5}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Values.At(0, 0))
	assert.InDelta(t, 5-2.0, res.Values.At(0, 1), 1e-12)
}

func TestKernelExplainer_NonlinearDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	bg := randomMatrix(rng, 8, 14)
	X := randomMatrix(rng, 4, 14)
	predict := func(X mat.Matrix) ([]float64, error) {
		r, c := X.Dims()
		out := make([]float64, r)
		for i := 0; i < r; i++ {
			s := 0.0
			for j := 0; j < c; j++ {
				s += math.Sin(X.At(i, j)) * float64(j%3)
			}
			out[i] = 1 / (1 + math.Exp(-s))
		}
		return out, nil
	}

	run := func(workers int) *Explanation {
		exp, err := NewKernelExplainer(predict, bg, WithNSamples(200), WithSeed(42), WithWorkers(workers))
		require.NoError(t, err)
		res, err := exp.Explain(context.Background(), X)
		require.NoError(t, err)
		return res
	}
	a, b := run(1), run(4)
	assert.True(t, mat.Equal(a.Values, b.Values))
	assert.Less(t, a.MaxAdditivityGap(), 1e-9)
}

func TestKernelExplainer_BackgroundWeights(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	w := []float64{1, 2, -1}
	bg := randomMatrix(rng, 4, 3)
	weights := []float64{1, 3, 0, 4}

	exp, err := NewKernelExplainer(linearPredict(w, 0), bg, WithBackgroundWeights(weights))
	require.NoError(t, err)
	mu := columnMeans(bg, weights)
	assert.InDelta(t, w[0]*mu[0]+w[1]*mu[1]+w[2]*mu[2], exp.BaseValue(), 1e-12)

	x := []float64{0.3, -0.2, 1.1}
	res, err := exp.Explain(context.Background(), mat.NewDense(1, 3, x))
	require.NoError(t, err)
	for j := range w {
		assert.InDelta(t, w[j]*(x[j]-mu[j]), res.Values.At(0, j), 1e-9)
	}

	_, err = NewKernelExplainer(linearPredict(w, 0), bg, WithBackgroundWeights([]float64{1, 2}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = NewKernelExplainer(linearPredict(w, 0), bg, WithBackgroundWeights([]float64{1, -2, 0, 0}))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestKernelExplainer_Cancel(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	bg := randomMatrix(rng, 4, 3)
	exp, err := NewKernelExplainer(linearPredict([]float64{1, 1, 1}, 0), bg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Explain(ctx, randomMatrix(rng, 3, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKernelExplainer_PredictError(t *testing.T) {
	bg := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	calls := 0
	predict := func(X mat.Matrix) ([]float64, error) {
		calls++
		if calls > 2 {
			return nil, errors.New("model offline")
		}
		r, _ := X.Dims()
		return make([]float64, r), nil
	}
	exp, err := NewKernelExplainer(predict, bg, WithWorkers(1))
	require.NoError(t, err)
	_, err = exp.Explain(context.Background(), mat.NewDense(1, 2, []float64{3, 4}))
	assert.ErrorContains(t, err, "model offline")
}

func TestKernelExplainer_PredictPanic(t *testing.T) {
	bg := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	calls := 0
	predict := func(X mat.Matrix) ([]float64, error) {
		calls++
		if calls > 2 {
			panic("index out of range")
		}
		r, _ := X.Dims()
		return make([]float64, r), nil
	}
	exp, err := NewKernelExplainer(predict, bg, WithWorkers(1))
	require.NoError(t, err)
	_, err = exp.Explain(context.Background(), mat.NewDense(1, 2, []float64{3, 4}))
	var pe *errors.PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "KernelExplainer.explainRow", pe.Operation)
}

func TestPredictProbaFunc(t *testing.T) {
	lr := linear_model.NewLogisticRegression()
	_, err := PredictProbaFunc(lr, 1)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X := mat.NewDense(6, 1, []float64{-3, -2, -1, 1, 2, 3})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	require.NoError(t, lr.Fit(X, y))

	f, err := PredictProbaFunc(lr, 1)
	require.NoError(t, err)
	out, err := f(X)
	require.NoError(t, err)
	require.Len(t, out, 6)
	assert.Less(t, out[0], 0.5)
	assert.Greater(t, out[5], 0.5)

	_, err = PredictProbaFunc(lr, 7)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestNewKernelExplainer_Errors(t *testing.T) {
	_, err := NewKernelExplainer(nil, mat.NewDense(1, 1, nil))
	assert.Error(t, err)

	exp, err := NewKernelExplainer(linearPredict([]float64{1}, 0), mat.NewDense(1, 1, nil))
	require.NoError(t, err)
	_, err = exp.Explain(context.Background(), mat.NewDense(1, 2, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestSampleBudget(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		varying   int
		want      int
	}{
		{"default counts varying features", 0, 3, 2*3 + 2048},
		{"negative means default", -5, 10, 2*10 + 2048},
		{"explicit budget kept", 300, 12, 300},
		{"at least one pair", 1, 4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sampleBudget(tt.requested, tt.varying))
		})
	}
}

func TestSolveConstrained_Singular(t *testing.T) {
	// 3行とも特徴量0だけの coalition なので特徴量1の列が0になる
	coals := []coalition{
		{mask: []bool{true, false, false}, weight: 1},
		{mask: []bool{true, false, false}, weight: 1},
		{mask: []bool{true, false, false}, weight: 1},
	}
	_, err := solveConstrained(coals, []float64{1, 1, 1}, 0, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))
	var me *errors.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "least squares", me.Kind)
}
