package shap

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/YuminosukeSato/censusml/core/parallel"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"github.com/YuminosukeSato/censusml/sklearn/tree"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// TreeModel は TreeExplainer が読める学習済みモデル。
// tree.DecisionTreeClassifier が満たす。
type TreeModel interface {
	Trees() []*tree.Tree
	Classes() []int
}

// TreeExplainer は path-dependent TreeSHAP による厳密な Shapley 値。
// 期待値は各ノードの cover（訓練サンプル数）で重み付けする。
// 複数の木を渡した場合、出力と SHAP 値は木の平均になる。
type TreeExplainer struct {
	trees     []*tree.Tree
	class     int // Value の添字
	label     int
	nFeatures int
	cfg       config
	base      float64
}

// NewTreeExplainer は学習済みの木から説明器を作る
func NewTreeExplainer(m TreeModel, opts ...Option) (*TreeExplainer, error) {
	trees := m.Trees()
	if len(trees) == 0 {
		return nil, errors.NewNotFittedError("TreeExplainer", "NewTreeExplainer")
	}
	cfg := newConfig(opts)

	classes := m.Classes()
	if len(classes) == 0 {
		return nil, errors.NewNotFittedError("TreeExplainer", "NewTreeExplainer")
	}
	idx := len(classes) - 1
	if cfg.hasClass {
		idx = slices.Index(classes, cfg.outputClass)
		if idx < 0 {
			return nil, errors.NewValueError("NewTreeExplainer",
				fmt.Sprintf("output class %d not in model classes %v", cfg.outputClass, classes))
		}
	}

	nFeatures := trees[0].NFeatures
	for _, t := range trees {
		if len(t.Nodes) == 0 {
			return nil, errors.NewNotFittedError("TreeExplainer", "NewTreeExplainer")
		}
		if t.NFeatures != nFeatures {
			return nil, errors.NewDimensionError("NewTreeExplainer", nFeatures, t.NFeatures, 1)
		}
	}
	if cfg.featureNames != nil && len(cfg.featureNames) != nFeatures {
		return nil, errors.NewDimensionError("NewTreeExplainer", nFeatures, len(cfg.featureNames), 1)
	}

	e := &TreeExplainer{trees: trees, class: idx, label: classes[idx], nFeatures: nFeatures, cfg: cfg}
	for _, t := range trees {
		e.base += expectedValue(t, 0, idx)
	}
	e.base /= float64(len(trees))
	return e, nil
}

// BaseValue はモデル出力の cover 重み付き期待値
func (e *TreeExplainer) BaseValue() float64 { return e.base }

// OutputClass は説明しているクラスラベル
func (e *TreeExplainer) OutputClass() int { return e.label }

// Explain は X の各行の SHAP 値を計算する
func (e *TreeExplainer) Explain(ctx context.Context, X mat.Matrix) (*Explanation, error) {
	rows, cols := X.Dims()
	if cols != e.nFeatures {
		return nil, errors.NewDimensionError("TreeExplainer.Explain", e.nFeatures, cols, 1)
	}
	if rows == 0 {
		return nil, errors.NewValueError("TreeExplainer.Explain", "no rows to explain")
	}

	start := time.Now()
	values := mat.NewDense(rows, cols, nil)
	output := make([]float64, rows)
	data := mat.DenseCopyOf(X)
	scale := 1 / float64(len(e.trees))

	err := parallel.ForEach(ctx, rows, e.cfg.workers, func(_ context.Context, i int) error {
		x := data.RawRowView(i)
		phi := make([]float64, cols)
		var out float64
		for _, t := range e.trees {
			treeSHAP(t, x, phi, e.class)
			out += t.Value(x)[e.class]
		}
		for j := range phi {
			phi[j] *= scale
		}
		values.SetRow(i, phi)
		output[i] = out * scale
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "TreeExplainer.Explain")
	}

	exp := &Explanation{
		Values:       values,
		BaseValue:    e.base,
		FeatureNames: defaultNames(cols, e.cfg.featureNames),
		Data:         data,
		Output:       output,
		Explainer:    "tree",
		RunID:        uuid.NewString(),
	}
	log.GetLoggerWithName("shap").Info("tree explanation computed",
		log.ExplainerKey, exp.Explainer,
		log.RunIDKey, exp.RunID,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.BaseValueKey, exp.BaseValue,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return exp, nil
}

// expectedValue は部分木の cover 重み付き平均出力
func expectedValue(t *tree.Tree, node, class int) float64 {
	n := &t.Nodes[node]
	if n.IsLeaf() {
		return n.Value[class]
	}
	l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
	if n.Cover == 0 {
		return n.Value[class]
	}
	return (l.Cover*expectedValue(t, n.Left, class) + r.Cover*expectedValue(t, n.Right, class)) / n.Cover
}

// pathElem は根から現在ノードまでに現れた特徴量1つ分の状態。
// zero は特徴量が欠けたときにこの経路へ流れる割合、one は x がこの経路を通るなら 1。
// weight はその特徴量を除いた部分集合サイズごとの重み。
type pathElem struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

// treeSHAP は1本の木について x の SHAP 値を phi に加算する
func treeSHAP(t *tree.Tree, x, phi []float64, class int) {
	recurse(t, x, phi, class, 0, 0, nil, 1, 1, -1)
}

func recurse(t *tree.Tree, x, phi []float64, class, node, depth int, parent []pathElem, pz, po float64, pf int) {
	path := make([]pathElem, depth+1)
	copy(path, parent[:depth])
	extendPath(path, depth, pz, po, pf)

	n := &t.Nodes[node]
	if n.IsLeaf() {
		v := n.Value[class]
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * v
		}
		return
	}

	// NaN は tree.Leaf と同じく右に進む
	hot, cold := n.Left, n.Right
	if !(x[n.Feature] <= n.Threshold) {
		hot, cold = cold, hot
	}
	if n.Cover == 0 {
		return
	}
	hotZero := t.Nodes[hot].Cover / n.Cover
	coldZero := t.Nodes[cold].Cover / n.Cover

	// 同じ特徴量が経路上に既にあれば取り除き、その割合を引き継ぐ
	iz, io := 1.0, 1.0
	unique := depth
	for k := 1; k <= depth; k++ {
		if path[k].feature == n.Feature {
			iz, io = path[k].zero, path[k].one
			unwindPath(path, depth, k)
			unique--
			break
		}
	}

	recurse(t, x, phi, class, hot, unique+1, path, hotZero*iz, io, n.Feature)
	recurse(t, x, phi, class, cold, unique+1, path, coldZero*iz, 0, n.Feature)
}

func extendPath(path []pathElem, depth int, zero, one float64, feature int) {
	path[depth] = pathElem{feature: feature, zero: zero, one: one}
	if depth == 0 {
		path[depth].weight = 1
	}
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / d
		path[i].weight = zero * path[i].weight * float64(depth-i) / d
	}
}

func unwindPath(path []pathElem, depth, idx int) {
	one, zero := path[idx].one, path[idx].zero
	next := path[depth].weight
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * d / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/d
		} else {
			path[i].weight = path[i].weight * d / (zero * float64(depth-i))
		}
	}
	for i := idx; i < depth; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
}

// unwoundPathSum は idx の特徴量を取り除いた後の重みの総和を path を書き換えずに求める
func unwoundPathSum(path []pathElem, depth, idx int) float64 {
	one, zero := path[idx].one, path[idx].zero
	next := path[depth].weight
	d := float64(depth + 1)
	total := 0.0
	switch {
	case one != 0:
		for i := depth - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)
		}
	case zero != 0:
		for i := depth - 1; i >= 0; i-- {
			total += path[i].weight / (zero * float64(depth-i))
		}
	}
	return total * d
}
