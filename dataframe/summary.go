package dataframe

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnSummary は1列の要約統計量
type ColumnSummary struct {
	Name    string
	Kind    Kind
	Count   int
	Missing int

	// 数値列のみ。値がない場合は NaN
	Mean, Std             float64
	Min, Q25, Median, Q75 float64
	Max                   float64

	// カテゴリ列のみ
	Distinct int
}

// Describe は列ごとの要約統計量を返す。
// Std は標本標準偏差、分位点は経験分布による。
func (f *Frame) Describe() []ColumnSummary {
	names := f.Names()
	out := make([]ColumnSummary, len(names))
	for j, name := range names {
		s := f.df.Col(name)
		sum := ColumnSummary{Name: name, Kind: kindOf(s.Type())}

		var nums []float64
		distinct := make(map[string]struct{})
		for i := 0; i < s.Len(); i++ {
			e := s.Elem(i)
			if isMissing(e) {
				sum.Missing++
				continue
			}
			sum.Count++
			if sum.Kind.Numeric() {
				nums = append(nums, e.Float())
			} else {
				distinct[e.String()] = struct{}{}
			}
		}

		if sum.Kind.Numeric() {
			describeNumbers(&sum, nums)
		} else {
			sum.Distinct = len(distinct)
			sum.Mean, sum.Std = math.NaN(), math.NaN()
			sum.Min, sum.Q25, sum.Median, sum.Q75, sum.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
		}
		out[j] = sum
	}
	return out
}

func describeNumbers(sum *ColumnSummary, nums []float64) {
	if len(nums) == 0 {
		nan := math.NaN()
		sum.Mean, sum.Std, sum.Min, sum.Q25, sum.Median, sum.Q75, sum.Max = nan, nan, nan, nan, nan, nan, nan
		return
	}
	sort.Float64s(nums)
	sum.Mean = stat.Mean(nums, nil)
	sum.Std = math.NaN()
	if len(nums) > 1 {
		sum.Std = stat.StdDev(nums, nil)
	}
	sum.Min = floats.Min(nums)
	sum.Max = floats.Max(nums)
	sum.Q25 = stat.Quantile(0.25, stat.Empirical, nums, nil)
	sum.Median = stat.Quantile(0.5, stat.Empirical, nums, nil)
	sum.Q75 = stat.Quantile(0.75, stat.Empirical, nums, nil)
}
