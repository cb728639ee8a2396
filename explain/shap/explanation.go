// Package shap は Shapley 値によるモデルの説明。
// 決定木には厳密な TreeSHAP、任意のモデルには Kernel SHAP を使う。
package shap

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Explanation は説明対象の各行に対する特徴量ごとの寄与
type Explanation struct {
	// Values は行 × 特徴量の SHAP 値
	Values *mat.Dense
	// BaseValue は参照分布上でのモデル出力の期待値
	BaseValue float64
	// FeatureNames は列名。TreeExplainer / KernelExplainer に渡さなければ "f0", "f1", ...
	FeatureNames []string
	// Data は説明した入力行
	Data *mat.Dense
	// Output は各行でのモデル出力
	Output []float64

	// Explainer は "tree" または "kernel"
	Explainer string
	RunID     string
}

// Contribution は1行の中の1特徴量の寄与
type Contribution struct {
	Feature string
	Value   float64 // 入力値
	SHAP    float64
}

// Rows returns the number of explained rows.
func (e *Explanation) Rows() int {
	r, _ := e.Values.Dims()
	return r
}

// Row は i 行目の SHAP 値を返す
func (e *Explanation) Row(i int) []float64 {
	return mat.Row(nil, i, e.Values)
}

// Contributions は i 行目の寄与を |SHAP| の降順で返す。同じ大きさなら列順
func (e *Explanation) Contributions(i int) []Contribution {
	_, m := e.Values.Dims()
	out := make([]Contribution, m)
	for j := 0; j < m; j++ {
		out[j] = Contribution{Feature: e.FeatureNames[j], Value: e.Data.At(i, j), SHAP: e.Values.At(i, j)}
	}
	sort.SliceStable(out, func(a, b int) bool { return math.Abs(out[a].SHAP) > math.Abs(out[b].SHAP) })
	return out
}

// AdditivityGap は各行の sum(SHAP) + BaseValue - Output を返す
func (e *Explanation) AdditivityGap() []float64 {
	r, m := e.Values.Dims()
	gaps := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := e.BaseValue
		for j := 0; j < m; j++ {
			sum += e.Values.At(i, j)
		}
		gaps[i] = sum - e.Output[i]
	}
	return gaps
}

// MaxAdditivityGap は AdditivityGap の絶対値の最大
func (e *Explanation) MaxAdditivityGap() float64 {
	var worst float64
	for _, g := range e.AdditivityGap() {
		worst = math.Max(worst, math.Abs(g))
	}
	return worst
}

// MeanAbs は特徴量ごとの mean(|SHAP|) を返す
func (e *Explanation) MeanAbs() []float64 {
	r, m := e.Values.Dims()
	out := make([]float64, m)
	if r == 0 {
		return out
	}
	for j := 0; j < m; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += math.Abs(e.Values.At(i, j))
		}
		out[j] = sum / float64(r)
	}
	return out
}

func defaultNames(m int, names []string) []string {
	if len(names) == m {
		return append([]string(nil), names...)
	}
	out := make([]string, m)
	for j := range out {
		out[j] = fmt.Sprintf("f%d", j)
	}
	return out
}
