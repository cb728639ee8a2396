package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/censusml/core/model"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// OneHotEncoder learns the distinct values of one categorical column and
// expands values into binary indicator columns, one per category.
type OneHotEncoder struct {
	model.BaseEstimator

	// categories is ascending: numerically when every value parses as a
	// float, lexicographically otherwise.
	categories []string
	index      map[string]int

	// fixed is set when the categories were supplied up front.
	fixed bool
}

// NewOneHotEncoder returns an encoder that learns categories in Fit.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{}
}

// NewOneHotEncoderWithCategories returns an encoder with a fixed category
// list. Values outside the list encode as all zeros.
func NewOneHotEncoderWithCategories(categories ...string) *OneHotEncoder {
	enc := &OneHotEncoder{fixed: true}
	enc.setCategories(dedupe(categories))
	enc.SetFitted()
	return enc
}

func (e *OneHotEncoder) setCategories(cats []string) {
	e.categories = cats
	e.index = make(map[string]int, len(cats))
	for i, c := range cats {
		e.index[c] = i
	}
}

// Fit learns the categories from values. It is a no-op for an encoder
// with fixed categories.
func (e *OneHotEncoder) Fit(values []string) error {
	if e.fixed {
		return nil
	}
	if len(values) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	cats := dedupe(values)
	SortCategories(cats)
	e.setCategories(cats)
	e.SetFitted()
	return nil
}

// Transform returns a len(values) x len(categories) 0/1 matrix.
func (e *OneHotEncoder) Transform(values []string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(values) == 0 || len(e.categories) == 0 {
		return nil, errors.NewValueError("OneHotEncoder.Transform", "nothing to encode")
	}
	out := mat.NewDense(len(values), len(e.categories), nil)
	for i, v := range values {
		if j, ok := e.index[v]; ok {
			out.Set(i, j, 1)
		}
	}
	return out, nil
}

// FitTransform fits the encoder and encodes values.
func (e *OneHotEncoder) FitTransform(values []string) (*mat.Dense, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// Categories returns the learned categories in output column order.
func (e *OneHotEncoder) Categories() []string {
	return append([]string(nil), e.categories...)
}

// FeatureNames returns "<prefix>_<category>" for each output column.
func (e *OneHotEncoder) FeatureNames(prefix string) []string {
	names := make([]string, len(e.categories))
	for i, c := range e.categories {
		names[i] = prefix + "_" + c
	}
	return names
}

// LabelEncoder maps class labels onto 0..n-1 in ascending order.
type LabelEncoder struct {
	model.BaseEstimator
	Classes []float64
	index   map[float64]int
}

// NewLabelEncoder returns an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit learns the distinct labels.
func (l *LabelEncoder) Fit(labels []float64) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[float64]bool)
	l.Classes = l.Classes[:0]
	for _, v := range labels {
		if !seen[v] {
			seen[v] = true
			l.Classes = append(l.Classes, v)
		}
	}
	sort.Float64s(l.Classes)
	l.index = make(map[float64]int, len(l.Classes))
	for i, c := range l.Classes {
		l.index[c] = i
	}
	l.SetFitted()
	return nil
}

// Transform returns the class index of every label.
func (l *LabelEncoder) Transform(labels []float64) ([]int, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	out := make([]int, len(labels))
	for i, v := range labels {
		idx, ok := l.index[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "unseen label "+strconv.FormatFloat(v, 'g', -1, 64))
		}
		out[i] = idx
	}
	return out, nil
}

// InverseTransform maps class indices back to labels.
func (l *LabelEncoder) InverseTransform(indices []int) ([]float64, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	out := make([]float64, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(l.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "class index out of range")
		}
		out[i] = l.Classes[idx]
	}
	return out, nil
}

// SortCategories sorts numerically when every value parses as a float
// and lexicographically otherwise.
func SortCategories(cats []string) {
	nums := make([]float64, len(cats))
	numeric := true
	for i, c := range cats {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = v
	}
	if !numeric {
		sort.Strings(cats)
		return
	}
	sort.Sort(byValue{cats: cats, nums: nums})
}

type byValue struct {
	cats []string
	nums []float64
}

func (b byValue) Len() int           { return len(b.cats) }
func (b byValue) Less(i, j int) bool { return b.nums[i] < b.nums[j] }
func (b byValue) Swap(i, j int) {
	b.cats[i], b.cats[j] = b.cats[j], b.cats[i]
	b.nums[i], b.nums[j] = b.nums[j], b.nums[i]
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
