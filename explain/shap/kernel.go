package shap

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/YuminosukeSato/censusml/core/model"
	"github.com/YuminosukeSato/censusml/core/parallel"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PredictFunc はモデル出力を1行1値で返す関数
type PredictFunc func(X mat.Matrix) ([]float64, error)

// maxBatchRows は1回の PredictFunc 呼び出しに渡す合成行数の上限
const maxBatchRows = 1 << 14

// PredictProbaFunc は分類器の指定クラスの確率を PredictFunc にする
func PredictProbaFunc(m model.ProbabilisticClassifier, class int) (PredictFunc, error) {
	classes := m.Classes()
	if len(classes) == 0 {
		return nil, errors.NewNotFittedError("KernelExplainer", "PredictProbaFunc")
	}
	idx := slices.Index(classes, class)
	if idx < 0 {
		return nil, errors.NewValueError("PredictProbaFunc",
			fmt.Sprintf("class %d not in model classes %v", class, classes))
	}
	return func(X mat.Matrix) ([]float64, error) {
		proba, err := m.PredictProba(X)
		if err != nil {
			return nil, err
		}
		return mat.Col(nil, idx, proba), nil
	}, nil
}

// KernelExplainer は Kernel SHAP による近似 Shapley 値。
// 欠けた特徴量は背景データの値で置き換え、その重み付き平均を coalition の出力とする。
type KernelExplainer struct {
	predict    PredictFunc
	background *mat.Dense
	weights    []float64
	cfg        config
	base       float64
	nFeatures  int
}

// NewKernelExplainer は背景データ上の期待出力を計算して説明器を作る
func NewKernelExplainer(predict PredictFunc, background mat.Matrix, opts ...Option) (*KernelExplainer, error) {
	if predict == nil {
		return nil, errors.NewValueError("NewKernelExplainer", "predict function is nil")
	}
	bgRows, m := background.Dims()
	if bgRows == 0 || m == 0 {
		return nil, errors.NewValueError("NewKernelExplainer", "background is empty")
	}
	cfg := newConfig(opts)
	if cfg.featureNames != nil && len(cfg.featureNames) != m {
		return nil, errors.NewDimensionError("NewKernelExplainer", m, len(cfg.featureNames), 1)
	}

	weights := cfg.bgWeights
	if weights == nil {
		weights = make([]float64, bgRows)
		floats.AddConst(1, weights)
	}
	if len(weights) != bgRows {
		return nil, errors.NewDimensionError("NewKernelExplainer", bgRows, len(weights), 0)
	}
	total := floats.Sum(weights)
	if total <= 0 || math.IsNaN(total) || floats.Min(weights) < 0 {
		return nil, errors.NewValidationError("background_weights", "must be non-negative with a positive sum", weights)
	}
	weights = append([]float64(nil), weights...)
	floats.Scale(1/total, weights)

	bg := mat.DenseCopyOf(background)
	out, err := predict(bg)
	if err != nil {
		return nil, errors.Wrap(err, "NewKernelExplainer: predict background")
	}
	if len(out) != bgRows {
		return nil, errors.NewDimensionError("NewKernelExplainer", bgRows, len(out), 0)
	}

	return &KernelExplainer{
		predict:    predict,
		background: bg,
		weights:    weights,
		cfg:        cfg,
		base:       floats.Dot(weights, out),
		nFeatures:  m,
	}, nil
}

// BaseValue は背景データ上のモデル出力の重み付き平均
func (e *KernelExplainer) BaseValue() float64 { return e.base }

// Explain は X の各行の SHAP 値を推定する。行は並列に処理され、
// 各行の coalition サンプリングは seed + 行番号 で決まる。
func (e *KernelExplainer) Explain(ctx context.Context, X mat.Matrix) (*Explanation, error) {
	rows, cols := X.Dims()
	if cols != e.nFeatures {
		return nil, errors.NewDimensionError("KernelExplainer.Explain", e.nFeatures, cols, 1)
	}
	if rows == 0 {
		return nil, errors.NewValueError("KernelExplainer.Explain", "no rows to explain")
	}

	start := time.Now()
	data := mat.DenseCopyOf(X)
	fx, err := e.predict(data)
	if err != nil {
		return nil, errors.Wrap(err, "KernelExplainer.Explain: predict rows")
	}
	if len(fx) != rows {
		return nil, errors.NewDimensionError("KernelExplainer.Explain", rows, len(fx), 0)
	}

	nSamples := e.cfg.nSamples
	values := mat.NewDense(rows, cols, nil)
	coalitions := make([]int, rows)
	err = parallel.ForEach(ctx, rows, e.cfg.workers, func(ctx context.Context, i int) error {
		rng := rand.New(rand.NewPCG(uint64(e.cfg.seed), uint64(i)))
		var phi []float64
		var n int
		// predict の panic は PanicError として返す
		err := errors.SafeExecute("KernelExplainer.explainRow", func() error {
			var err error
			phi, n, err = e.explainRow(ctx, data.RawRowView(i), fx[i], nSamples, rng)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "row %d", i)
		}
		values.SetRow(i, phi)
		coalitions[i] = n
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "KernelExplainer.Explain")
	}

	exp := &Explanation{
		Values:       values,
		BaseValue:    e.base,
		FeatureNames: defaultNames(cols, e.cfg.featureNames),
		Data:         data,
		Output:       fx,
		Explainer:    "kernel",
		RunID:        uuid.NewString(),
	}
	bgRows, _ := e.background.Dims()
	log.GetLoggerWithName("shap").Info("kernel explanation computed",
		log.ExplainerKey, exp.Explainer,
		log.RunIDKey, exp.RunID,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.BackgroundKey, bgRows,
		log.CoalitionsKey, slices.Max(coalitions),
		log.BaseValueKey, exp.BaseValue,
		log.RandomSeedKey, e.cfg.seed,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return exp, nil
}

// coalition は varying な特徴量のうち x の値を使うもの
type coalition struct {
	mask   []bool
	weight float64
}

func (e *KernelExplainer) explainRow(ctx context.Context, x []float64, fx float64, nSamples int, rng *rand.Rand) ([]float64, int, error) {
	phi := make([]float64, len(x))
	varying := e.varyingFeatures(x)
	switch len(varying) {
	case 0:
		return phi, 0, nil
	case 1:
		phi[varying[0]] = fx - e.base
		return phi, 0, nil
	}

	mv := len(varying)
	budget := sampleBudget(nSamples, mv)
	var coals []coalition
	if mv < 31 && (1<<mv)-2 <= budget {
		coals = enumerateCoalitions(mv)
	} else {
		coals = sampleCoalitions(mv, budget, rng)
	}

	ey, err := e.coalitionOutputs(ctx, x, varying, coals)
	if err != nil {
		return nil, 0, err
	}

	sol, err := solveConstrained(coals, ey, e.base, fx)
	if err != nil {
		return nil, 0, err
	}
	for k, j := range varying {
		phi[j] = sol[k]
	}
	return phi, len(coals), nil
}

// sampleBudget は mv 個の varying な特徴量を持つ行で評価する coalition 数。
// requested が 0 以下なら 2*mv + 2048。少なくとも coalition と補集合の1組を引く。
func sampleBudget(requested, mv int) int {
	if requested <= 0 {
		requested = 2*mv + 2048
	}
	return max(requested, 2)
}

// varyingFeatures は背景のどれかの行と値が異なる特徴量。
// それ以外の特徴量はどの coalition でも同じ値になるので SHAP 値は 0。
func (e *KernelExplainer) varyingFeatures(x []float64) []int {
	bgRows, _ := e.background.Dims()
	var out []int
	for j, v := range x {
		for k := 0; k < bgRows; k++ {
			if e.background.At(k, j) != v {
				out = append(out, j)
				break
			}
		}
	}
	return out
}

// coalitionOutputs は各 coalition について背景で補完した合成行の重み付き平均出力を返す
func (e *KernelExplainer) coalitionOutputs(ctx context.Context, x []float64, varying []int, coals []coalition) ([]float64, error) {
	bgRows, m := e.background.Dims()
	perBatch := max(1, maxBatchRows/bgRows)
	ey := make([]float64, len(coals))

	for lo := 0; lo < len(coals); lo += perBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+perBatch, len(coals))
		synth := mat.NewDense((hi-lo)*bgRows, m, nil)
		for c := lo; c < hi; c++ {
			for k := 0; k < bgRows; k++ {
				row := synth.RawRowView((c-lo)*bgRows + k)
				copy(row, e.background.RawRowView(k))
				for vi, j := range varying {
					if coals[c].mask[vi] {
						row[j] = x[j]
					}
				}
			}
		}
		out, err := e.predict(synth)
		if err != nil {
			return nil, errors.Wrap(err, "predict coalitions")
		}
		if len(out) != (hi-lo)*bgRows {
			return nil, errors.NewDimensionError("KernelExplainer.predict", (hi-lo)*bgRows, len(out), 0)
		}
		for c := lo; c < hi; c++ {
			base := (c - lo) * bgRows
			ey[c] = floats.Dot(e.weights, out[base:base+bgRows])
		}
	}
	return ey, nil
}

// shapleyKernel は大きさ s の coalition 1つあたりの Shapley カーネル重み
func shapleyKernel(m, s int) float64 {
	return float64(m-1) / (binomial(m, s) * float64(s) * float64(m-s))
}

func binomial(n, k int) float64 {
	lg := func(v int) float64 {
		r, _ := math.Lgamma(float64(v + 1))
		return r
	}
	return math.Round(math.Exp(lg(n) - lg(k) - lg(n-k)))
}

// enumerateCoalitions は空集合と全体集合を除く全ての部分集合を列挙する
func enumerateCoalitions(mv int) []coalition {
	out := make([]coalition, 0, (1<<mv)-2)
	for bits := 1; bits < (1<<mv)-1; bits++ {
		mask := make([]bool, mv)
		s := 0
		for j := 0; j < mv; j++ {
			if bits&(1<<j) != 0 {
				mask[j] = true
				s++
			}
		}
		out = append(out, coalition{mask: mask, weight: shapleyKernel(mv, s)})
	}
	return out
}

// sampleCoalitions は大きさをカーネル分布から引き、補集合と対にして nSamples 個まで集める。
// 重複した coalition は1つにまとめ、出現回数を重みにする。
func sampleCoalitions(mv, nSamples int, rng *rand.Rand) []coalition {
	sizeWeights := make([]float64, mv-1)
	for s := 1; s < mv; s++ {
		sizeWeights[s-1] = float64(mv-1) / (float64(s) * float64(mv-s))
	}
	cdf := make([]float64, len(sizeWeights))
	floats.CumSum(cdf, sizeWeights)
	floats.Scale(1/cdf[len(cdf)-1], cdf)

	index := make(map[string]int)
	var out []coalition
	add := func(mask []bool) {
		key := maskKey(mask)
		if i, ok := index[key]; ok {
			out[i].weight++
			return
		}
		index[key] = len(out)
		out = append(out, coalition{mask: mask, weight: 1})
	}

	perm := make([]int, mv)
	for drawn := 0; drawn+1 < nSamples; drawn += 2 {
		u := rng.Float64()
		s := 1
		for s < mv-1 && cdf[s-1] < u {
			s++
		}
		for j := range perm {
			perm[j] = j
		}
		rng.Shuffle(mv, func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		mask := make([]bool, mv)
		for _, j := range perm[:s] {
			mask[j] = true
		}
		comp := make([]bool, mv)
		for j := range mask {
			comp[j] = !mask[j]
		}
		add(mask)
		add(comp)
	}
	return out
}

func maskKey(mask []bool) string {
	var b strings.Builder
	b.Grow(len(mask))
	for _, v := range mask {
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// solveConstrained は sum(phi) = fx - base の制約付き重み付き最小二乗を解く。
// 最後の特徴量を制約で消去し、残りを sqrt(w) で重み付けた最小二乗で求める。
func solveConstrained(coals []coalition, ey []float64, base, fx float64) ([]float64, error) {
	mv := len(coals[0].mask)
	total := fx - base
	last := mv - 1

	a := mat.NewDense(len(coals), last, nil)
	b := mat.NewVecDense(len(coals), nil)
	for c, co := range coals {
		sw := math.Sqrt(co.weight)
		zl := 0.0
		if co.mask[last] {
			zl = 1
		}
		for j := 0; j < last; j++ {
			zj := 0.0
			if co.mask[j] {
				zj = 1
			}
			a.Set(c, j, sw*(zj-zl))
		}
		b.SetVec(c, sw*(ey[c]-base-zl*total))
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		// 有限の条件数なら解は得られている。+Inf はピボットが0で解が埋まっていない
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, errors.NewModelError("KernelExplainer", "least squares", err)
		}
		if math.IsInf(float64(cond), 1) {
			return nil, errors.NewModelError("KernelExplainer", "least squares",
				errors.Wrapf(errors.ErrSingularMatrix, "%d coalitions over %d features", len(coals), mv))
		}
	}
	if err := errors.CheckNumericalStability("KernelExplainer.solve", sol.RawVector().Data, 0); err != nil {
		return nil, err
	}

	phi := make([]float64, mv)
	for j := 0; j < last; j++ {
		phi[j] = sol.AtVec(j)
	}
	phi[last] = total - floats.Sum(phi[:last])
	return phi, nil
}
