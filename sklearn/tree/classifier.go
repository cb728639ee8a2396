// Package tree は CART による決定木分類器。
// 学習済みの木は Tree として公開し、TreeSHAP が参照する。
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/censusml/core/model"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"github.com/YuminosukeSato/censusml/preprocessing"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.ProbabilisticClassifier = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter         = (*DecisionTreeClassifier)(nil)
)

// DecisionTreeClassifier はscikit-learn互換の決定木分類器
type DecisionTreeClassifier struct {
	model.BaseEstimator

	// ハイパーパラメータ
	criterion       string // "gini" または "entropy"
	maxDepth        int    // 0 以下は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	randomState     int64

	// 学習済みパラメータ
	classes_            []int
	nClasses_           int
	nFeatures_          int
	tree_               *Tree
	featureImportances_ []float64
}

// Option は DecisionTreeClassifier の設定
type Option func(*DecisionTreeClassifier)

// WithCriterion は分割の評価基準を指定する
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth は木の最大深さを指定する
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を指定する
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を指定する
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithRandomState は特徴量を調べる順序の乱数シードを指定する。
// 同じゲインの分割が複数あるとき、どれを選ぶかはこの順序で決まる。
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier は新しい決定木分類器を作成する
//
//	dt := tree.NewDecisionTreeClassifier(
//		tree.WithCriterion("entropy"),
//		tree.WithMaxDepth(4),
//	)
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit は訓練データから木を構築する。y は n×1 のクラスラベル
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("y must be a column vector, got %d columns", yCols))
	}

	dt.Reset()
	b, err := newBuilder(dt, X, y)
	if err != nil {
		return errors.Wrap(err, "DecisionTreeClassifier.Fit")
	}
	dt.classes_ = b.classes
	dt.nClasses_ = len(b.classes)
	dt.nFeatures_ = nFeatures
	dt.tree_ = b.build()
	dt.featureImportances_ = b.importances()
	dt.SetFitted()

	log.GetLoggerWithName("tree").Debug("decision tree fitted",
		log.ModelNameKey, "DecisionTreeClassifier",
		log.EstimatorIDKey, dt.EstimatorID(),
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, dt.nClasses_,
		"depth", dt.tree_.Depth(),
		"leaves", dt.tree_.Leaves(),
	)
	return nil
}

func (dt *DecisionTreeClassifier) checkInput(op string, X mat.Matrix) error {
	if !dt.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeClassifier", op)
	}
	if _, c := X.Dims(); c != dt.nFeatures_ {
		return errors.NewDimensionError("DecisionTreeClassifier."+op, dt.nFeatures_, c, 1)
	}
	return nil
}

// PredictProba は各クラスの確率 (n_samples × n_classes) を返す
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkInput("PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.nClasses_, nil)
	row := make([]float64, dt.nFeatures_)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.tree_.Value(row))
	}
	return out, nil
}

// Predict は最も確率の高いクラスラベル (n_samples × 1) を返す
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkInput("Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, dt.nFeatures_)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		value := dt.tree_.Value(row)
		best := 0
		for k := 1; k < len(value); k++ {
			if value[k] > value[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(dt.classes_[best]))
	}
	return out, nil
}

// Score は正解率を返す。未学習や次元不一致の場合は 0
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	r, _ := y.Dims()
	if r == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(r)
}

// Classes は学習時のクラスラベルを昇順で返す
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// Tree は学習済みの木を返す。未学習なら nil
func (dt *DecisionTreeClassifier) Tree() *Tree {
	return dt.tree_
}

// Trees は TreeExplainer 用に木を1本だけ持つスライスを返す
func (dt *DecisionTreeClassifier) Trees() []*Tree {
	if dt.tree_ == nil {
		return nil
	}
	return []*Tree{dt.tree_}
}

// GetFeatureImportances は不純度減少に基づく特徴量重要度（合計1）を返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth は木の深さを返す
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.Depth()
}

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree_ == nil {
		return 0
	}
	return dt.tree_.Leaves()
}

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"random_state":      dt.randomState,
	}
}

// SetParams はハイパーパラメータを設定する。未知のキーや型違いはエラー
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				dt.maxDepth = v
			case "min_samples_split":
				dt.minSamplesSplit = v
			default:
				dt.minSamplesLeaf = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				dt.randomState = int64(v)
			case int64:
				dt.randomState = v
			default:
				return errors.NewValidationError(key, "must be an int", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validate()
}

// ===========================================================================
// 木の構築
// ===========================================================================

type builder struct {
	dt       *DecisionTreeClassifier
	X        *mat.Dense
	labels   []int // クラス番号
	classes  []int
	nodes    []Node
	gains    []float64
	features []int
}

func newBuilder(dt *DecisionTreeClassifier, X, y mat.Matrix) (*builder, error) {
	_, p := X.Dims()
	b := &builder{dt: dt, X: mat.DenseCopyOf(X), gains: make([]float64, p)}

	// ラベルは整数に切り捨ててから昇順のクラス番号にする
	raw := mat.Col(nil, 0, y)
	for i, v := range raw {
		raw[i] = float64(int(v))
	}
	enc := preprocessing.NewLabelEncoder()
	if err := enc.Fit(raw); err != nil {
		return nil, err
	}
	labels, err := enc.Transform(raw)
	if err != nil {
		return nil, err
	}
	b.labels = labels
	b.classes = make([]int, len(enc.Classes))
	for k, c := range enc.Classes {
		b.classes[k] = int(c)
	}

	rng := rand.New(rand.NewPCG(uint64(dt.randomState), 0))
	b.features = rng.Perm(p)
	return b, nil
}

func (b *builder) build() *Tree {
	n, p := b.X.Dims()
	samples := make([]int, n)
	for i := range samples {
		samples[i] = i
	}
	b.grow(samples, 0)
	return &Tree{Nodes: b.nodes, NFeatures: p, NClasses: len(b.classes)}
}

func (b *builder) counts(samples []int) []float64 {
	c := make([]float64, len(b.classes))
	for _, s := range samples {
		c[b.labels[s]]++
	}
	return c
}

func (b *builder) impurity(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	var imp float64
	if b.dt.criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := c / total
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	imp = 1
	for _, c := range counts {
		p := c / total
		imp -= p * p
	}
	return imp
}

// grow appends the subtree for samples and returns its node index.
func (b *builder) grow(samples []int, depth int) int {
	counts := b.counts(samples)
	total := float64(len(samples))
	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = c / total
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    value,
		Cover:    total,
		Impurity: b.impurity(counts, total),
	})

	dt := b.dt
	if b.nodes[idx].Impurity <= 0 ||
		len(samples) < dt.minSamplesSplit ||
		len(samples) < 2*dt.minSamplesLeaf ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) {
		return idx
	}

	s, ok := b.bestSplit(samples, counts, b.nodes[idx].Impurity)
	if !ok {
		return idx
	}

	var left, right []int
	for _, i := range samples {
		if b.X.At(i, s.feature) <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.gains[s.feature] += s.gain * total

	b.nodes[idx].Feature = s.feature
	b.nodes[idx].Threshold = s.threshold
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit scans every feature in the seeded order. A zero-gain split is
// accepted so impure nodes keep splitting, e.g. on XOR-shaped data.
func (b *builder) bestSplit(samples []int, counts []float64, parentImp float64) (split, bool) {
	n := len(samples)
	total := float64(n)
	minLeaf := b.dt.minSamplesLeaf
	best := split{gain: math.Inf(-1)}
	found := false

	order := make([]int, n)
	left := make([]float64, len(counts))
	right := make([]float64, len(counts))
	for _, f := range b.features {
		copy(order, samples)
		sort.SliceStable(order, func(i, j int) bool { return b.X.At(order[i], f) < b.X.At(order[j], f) })

		for k := range left {
			left[k] = 0
			right[k] = counts[k]
		}
		for i := 0; i < n-1; i++ {
			c := b.labels[order[i]]
			left[c]++
			right[c]--

			lo, hi := b.X.At(order[i], f), b.X.At(order[i+1], f)
			nl := i + 1
			if lo == hi || nl < minLeaf || n-nl < minLeaf {
				continue
			}
			gain := parentImp -
				float64(nl)/total*b.impurity(left, float64(nl)) -
				float64(n-nl)/total*b.impurity(right, float64(n-nl))
			if gain > best.gain+1e-12 {
				thr := lo + (hi-lo)/2
				if thr >= hi {
					thr = lo
				}
				best = split{feature: f, threshold: thr, gain: gain}
				found = true
			}
		}
	}
	if found && best.gain < 0 {
		best.gain = 0
	}
	return best, found
}

func (b *builder) importances() []float64 {
	out := make([]float64, len(b.gains))
	var sum float64
	for _, g := range b.gains {
		sum += g
	}
	if sum <= 0 {
		return out
	}
	for i, g := range b.gains {
		out[i] = g / sum
	}
	return out
}
