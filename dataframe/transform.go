package dataframe

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

// Cast は列の種類を変換する。
// float から int は0方向への切り捨て。数値に解釈できない文字列や int への
// 欠損値は TypeCastError になる。float への欠損値は NaN のまま残る。
func (f *Frame) Cast(name string, to Kind) (*Frame, error) {
	s, err := f.series("dataframe.Cast", name)
	if err != nil {
		return nil, err
	}
	from := kindOf(s.Type())
	if from == to {
		return f, nil
	}

	var out series.Series
	switch to {
	case KindFloat:
		out, err = castFloat(s, from)
	case KindInt:
		out, err = castInt(s, from)
	case KindCategory:
		out = castCategory(s, from)
	default:
		return nil, errors.NewValidationError("kind", "unknown kind", to)
	}
	if err != nil {
		return nil, err
	}

	f.logger().Debug("column cast", log.ColumnKey, name, log.ColumnKindKey, to.String())
	return wrap("dataframe.Cast", f.df.Mutate(out))
}

func castFloat(s series.Series, from Kind) (series.Series, error) {
	vals := make([]float64, s.Len())
	for i := range vals {
		e := s.Elem(i)
		if isMissing(e) {
			vals[i] = math.NaN()
			continue
		}
		if from == KindCategory {
			v, err := strconv.ParseFloat(strings.TrimSpace(e.String()), 64)
			if err != nil {
				return series.Series{}, errors.NewTypeCastError(s.Name, from.String(), KindFloat.String(), i, e.String())
			}
			vals[i] = v
			continue
		}
		vals[i] = e.Float()
	}
	return series.New(vals, series.Float, s.Name), nil
}

func castInt(s series.Series, from Kind) (series.Series, error) {
	vals := make([]int, s.Len())
	truncated := false
	for i := range vals {
		e := s.Elem(i)
		if isMissing(e) {
			return series.Series{}, errors.NewTypeCastError(s.Name, from.String(), KindInt.String(), i, "")
		}
		v := e.Float()
		if from == KindCategory {
			var err error
			v, err = strconv.ParseFloat(strings.TrimSpace(e.String()), 64)
			if err != nil {
				return series.Series{}, errors.NewTypeCastError(s.Name, from.String(), KindInt.String(), i, e.String())
			}
		}
		if math.IsInf(v, 0) || math.Abs(v) > math.MaxInt64/2 {
			return series.Series{}, errors.NewTypeCastError(s.Name, from.String(), KindInt.String(), i, formatElem(e, from))
		}
		if v != math.Trunc(v) {
			truncated = true
		}
		vals[i] = int(v)
	}
	if truncated {
		errors.Warn(errors.NewDataConversionWarning(s.Name, from.String(), KindInt.String(), "fractional values truncated toward zero"))
	}
	return intSeries(s.Name, vals, nil), nil
}

func castCategory(s series.Series, from Kind) series.Series {
	vals := make([]string, s.Len())
	for i := range vals {
		e := s.Elem(i)
		if isMissing(e) {
			vals[i] = missingToken
			continue
		}
		vals[i] = formatElem(e, from)
	}
	return series.New(vals, series.String, s.Name)
}

// Apply は数値列の各要素を fn で変換し、同じ名前の float 列で置き換える。
// 欠損値は fn に渡さず NaN のまま残す。
func (f *Frame) Apply(name string, fn func(float64) float64) (*Frame, error) {
	return f.ApplyAs(name, name, fn)
}

// ApplyAs は Apply と同じ変換結果を dst 列に書き込む。src 列は残る
func (f *Frame) ApplyAs(src, dst string, fn func(float64) float64) (*Frame, error) {
	s, err := f.series("dataframe.Apply", src)
	if err != nil {
		return nil, err
	}
	if kind := kindOf(s.Type()); !kind.Numeric() {
		return nil, errors.NewValueError("dataframe.Apply", fmt.Sprintf("column %q is %s, want a numeric column", src, kind))
	}
	vals := make([]float64, s.Len())
	for i := range vals {
		e := s.Elem(i)
		if isMissing(e) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = fn(e.Float())
	}
	return wrap("dataframe.Apply", f.df.Mutate(series.New(vals, series.Float, dst)))
}

// SortBy は1列をキーに安定ソートする。同じキーの行は入力順を保ち、
// 欠損値は昇順・降順どちらでも末尾に並ぶ。
func (f *Frame) SortBy(name string, descending bool) (*Frame, error) {
	s, err := f.series("dataframe.SortBy", name)
	if err != nil {
		return nil, err
	}
	n := s.Len()
	missing := make([]bool, n)
	for i := range missing {
		missing[i] = isMissing(s.Elem(i))
	}

	var less func(a, b int) bool
	if kindOf(s.Type()).Numeric() {
		keys := s.Float()
		less = func(a, b int) bool { return keys[a] < keys[b] }
	} else {
		keys := s.Records()
		less = func(a, b int) bool { return keys[a] < keys[b] }
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		a, b := perm[i], perm[j]
		if missing[a] || missing[b] {
			return !missing[a] && missing[b]
		}
		if descending {
			return less(b, a)
		}
		return less(a, b)
	})
	return f.Take(perm)
}

// Element は FilterFunc の述語に渡される1つの値
type Element struct {
	// Float は数値列の値。カテゴリ列では数値に解釈できれば その値、できなければ NaN
	Float float64
	// Str は値の文字列表現
	Str     string
	Missing bool
}

var comparators = map[string]series.Comparator{
	"==": series.Eq,
	"!=": series.Neq,
	">":  series.Greater,
	">=": series.GreaterEq,
	"<":  series.Less,
	"<=": series.LessEq,
	"in": series.In,
}

// Filter は述語（==, !=, >, >=, <, <=, in）を満たす行だけを残す。
// 欠損値の行はどの述語も満たさない。
//
//	adults, err := df.Filter("AGE", ">=", 18)
//	married, err := df.Filter("MARST", "in", []string{"1", "2"})
func (f *Frame) Filter(name, op string, value interface{}) (*Frame, error) {
	s, err := f.series("dataframe.Filter", name)
	if err != nil {
		return nil, err
	}
	cmp, ok := comparators[strings.ToLower(op)]
	if !ok {
		return nil, errors.NewValidationError("op", "must be one of ==, !=, >, >=, <, <=, in", op)
	}

	numeric := kindOf(s.Type()).Numeric()
	comparando, err := normalizeComparando(value, numeric, cmp == series.In)
	if err != nil {
		return nil, errors.Wrapf(err, "dataframe.Filter %s", name)
	}
	if numeric {
		// compare in float space so an int column against 17.5 is not truncated
		s = series.New(s.Float(), series.Float, s.Name)
	}
	return f.applyMask("dataframe.Filter", s, s.Compare(cmp, comparando))
}

// FilterFunc は pred が true を返す行だけを残す
func (f *Frame) FilterFunc(name string, pred func(Element) bool) (*Frame, error) {
	s, err := f.series("dataframe.FilterFunc", name)
	if err != nil {
		return nil, err
	}
	kind := kindOf(s.Type())
	mask := s.Compare(series.CompFunc, func(e series.Element) bool {
		return pred(toElement(e, kind))
	})
	return f.applyMask("dataframe.FilterFunc", s, mask)
}

func (f *Frame) applyMask(op string, s, mask series.Series) (*Frame, error) {
	if mask.Err != nil {
		return nil, errors.Wrap(mask.Err, op)
	}
	keep, err := mask.Bool()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	idx := make([]int, 0, len(keep))
	for i, k := range keep {
		if k && !isMissing(s.Elem(i)) {
			idx = append(idx, i)
		}
	}
	out, err := f.Take(idx)
	if err != nil {
		return nil, err
	}
	out.logger().Debug("rows filtered", log.ColumnKey, s.Name, "dropped", f.Rows()-out.Rows())
	return out, nil
}

func toElement(e series.Element, kind Kind) Element {
	if isMissing(e) {
		return Element{Float: math.NaN(), Missing: true}
	}
	el := Element{Str: formatElem(e, kind)}
	if kind.Numeric() {
		el.Float = e.Float()
	} else if v, err := strconv.ParseFloat(el.Str, 64); err == nil {
		el.Float = v
	} else {
		el.Float = math.NaN()
	}
	return el
}

func normalizeComparando(value interface{}, numeric, list bool) (interface{}, error) {
	var strs []string
	var nums []float64
	switch v := value.(type) {
	case float64:
		nums = []float64{v}
	case float32:
		nums = []float64{float64(v)}
	case int:
		nums = []float64{float64(v)}
	case int64:
		nums = []float64{float64(v)}
	case string:
		strs = []string{v}
	case []float64:
		nums = v
	case []int:
		for _, x := range v {
			nums = append(nums, float64(x))
		}
	case []string:
		strs = v
	default:
		return nil, errors.NewValueError("dataframe.Filter", fmt.Sprintf("unsupported comparison value %T", value))
	}

	if numeric && strs != nil {
		for _, str := range strs {
			x, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
			if err != nil {
				return nil, errors.NewValueError("dataframe.Filter", fmt.Sprintf("cannot compare a numeric column with %q", str))
			}
			nums = append(nums, x)
		}
		strs = nil
	}
	if !numeric && nums != nil {
		for _, x := range nums {
			strs = append(strs, strconv.FormatFloat(x, 'f', -1, 64))
		}
		nums = nil
	}

	count := len(nums) + len(strs)
	if !list && count != 1 {
		return nil, errors.NewValueError("dataframe.Filter", "comparison needs exactly one value")
	}
	if list && count == 0 {
		return nil, errors.NewValueError("dataframe.Filter", "\"in\" needs at least one value")
	}
	if numeric {
		if list {
			return nums, nil
		}
		return nums[0], nil
	}
	if list {
		return strs, nil
	}
	return strs[0], nil
}

// DropMissing は names の列（省略時は全列）のどれかが欠損している行を取り除く
func (f *Frame) DropMissing(names ...string) (*Frame, error) {
	if len(names) == 0 {
		names = f.Names()
	}
	if err := f.checkColumns("dataframe.DropMissing", names); err != nil {
		return nil, err
	}
	out := f
	for _, name := range names {
		next, err := out.FilterFunc(name, func(Element) bool { return true })
		if err != nil {
			return nil, errors.Wrap(err, "dataframe.DropMissing")
		}
		out = next
	}
	return out, nil
}
