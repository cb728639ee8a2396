// Package dataframe は国勢調査のような表形式データを扱うデータフレーム。
// gota の DataFrame を包み、列の種類を int / float / category の3つに絞る。
// すべての操作は新しい Frame を返し、元の Frame は変更しない。
package dataframe

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

// missingToken is how gota spells a missing element.
const missingToken = "NaN"

// Frame は名前付きの列を順序付きで持つ表。すべての列の行数は等しい。
type Frame struct {
	df dataframe.DataFrame
}

// Col は New に渡す列
type Col struct {
	s series.Series
}

// IntCol は整数列を作る
func IntCol(name string, values []int) Col {
	return Col{s: series.New(values, series.Int, name)}
}

// FloatCol は浮動小数点列を作る。NaN は欠損値として扱う
func FloatCol(name string, values []float64) Col {
	return Col{s: series.New(values, series.Float, name)}
}

// CategoryCol はカテゴリ列を作る。空文字列は欠損値として扱う
func CategoryCol(name string, values []string) Col {
	vals := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			v = missingToken
		}
		vals[i] = v
	}
	return Col{s: series.New(vals, series.String, name)}
}

// New は列から Frame を作る。列の行数が揃っていない場合や名前が重複する場合はエラー
func New(cols ...Col) (*Frame, error) {
	if len(cols) == 0 {
		return nil, errors.NewValueError("dataframe.New", "at least one column is required")
	}
	seen := make(map[string]bool, len(cols))
	ss := make([]series.Series, len(cols))
	for i, c := range cols {
		if seen[c.s.Name] {
			return nil, errors.NewValueError("dataframe.New", fmt.Sprintf("duplicate column %q", c.s.Name))
		}
		seen[c.s.Name] = true
		if c.s.Len() != cols[0].s.Len() {
			return nil, errors.NewDimensionError("dataframe.New", cols[0].s.Len(), c.s.Len(), 0)
		}
		ss[i] = c.s
	}
	return wrap("dataframe.New", dataframe.New(ss...))
}

func wrap(op string, df dataframe.DataFrame) (*Frame, error) {
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, op)
	}
	return &Frame{df: df}, nil
}

// Shape は (行数, 列数) を返す
func (f *Frame) Shape() (rows, cols int) {
	return f.df.Dims()
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	return f.df.Nrow()
}

// Names は列名を順に返す
func (f *Frame) Names() []string {
	return f.df.Names()
}

// Kinds は列の種類を順に返す
func (f *Frame) Kinds() []Kind {
	types := f.df.Types()
	kinds := make([]Kind, len(types))
	for i, t := range types {
		kinds[i] = kindOf(t)
	}
	return kinds
}

// Kind は列の種類を返す
func (f *Frame) Kind(name string) (Kind, error) {
	s, err := f.series("dataframe.Kind", name)
	if err != nil {
		return KindInt, err
	}
	return kindOf(s.Type()), nil
}

// Has reports whether the frame has a column with the given name.
func (f *Frame) Has(name string) bool {
	for _, n := range f.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func (f *Frame) series(op, name string) (series.Series, error) {
	if !f.Has(name) {
		return series.Series{}, errors.NewColumnNotFoundError(op, name, f.df.Names())
	}
	return f.df.Col(name), nil
}

func (f *Frame) checkColumns(op string, names []string) error {
	for _, n := range names {
		if !f.Has(n) {
			return errors.NewColumnNotFoundError(op, n, f.df.Names())
		}
	}
	return nil
}

// Head は先頭から n 行を返す。Frame が短い場合はすべての行を返す
func (f *Frame) Head(n int) *Frame {
	rows := f.Rows()
	if n >= rows {
		return f
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	out, _ := f.Take(idx)
	return out
}

// Select は指定した列だけを指定順に持つ Frame を返す
func (f *Frame) Select(names ...string) (*Frame, error) {
	if len(names) == 0 {
		return nil, errors.NewValueError("dataframe.Select", "no columns given")
	}
	if err := f.checkColumns("dataframe.Select", names); err != nil {
		return nil, err
	}
	return wrap("dataframe.Select", f.df.Select(names))
}

// Drop は指定した列を除いた Frame を返す
func (f *Frame) Drop(names ...string) (*Frame, error) {
	if err := f.checkColumns("dataframe.Drop", names); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return f, nil
	}
	return wrap("dataframe.Drop", f.df.Drop(names))
}

// Take は位置で指定した行を指定順に持つ Frame を返す。重複も許す
func (f *Frame) Take(indices []int) (*Frame, error) {
	rows := f.Rows()
	for _, i := range indices {
		if i < 0 || i >= rows {
			return nil, errors.NewValueError("dataframe.Take", fmt.Sprintf("row index %d out of range [0, %d)", i, rows))
		}
	}
	if len(indices) == 0 {
		return f.emptyLike(), nil
	}
	return wrap("dataframe.Take", f.df.Subset(indices))
}

// emptyLike returns a zero-row frame with the same columns and kinds.
func (f *Frame) emptyLike() *Frame {
	names := f.df.Names()
	types := f.df.Types()
	ss := make([]series.Series, len(names))
	for i, n := range names {
		ss[i] = series.New([]string{}, types[i], n)
	}
	return &Frame{df: dataframe.New(ss...)}
}

// Column は数値列を float64 のスライスで返す。欠損値は NaN
func (f *Frame) Column(name string) ([]float64, error) {
	s, err := f.series("dataframe.Column", name)
	if err != nil {
		return nil, err
	}
	if !kindOf(s.Type()).Numeric() {
		var first string
		if s.Len() > 0 {
			first = s.Elem(0).String()
		}
		return nil, errors.NewTypeCastError(name, KindCategory.String(), KindFloat.String(), 0, first)
	}
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = elemFloat(s.Elem(i))
	}
	return out, nil
}

// Strings は列の値を文字列で返す。欠損値は空文字列
func (f *Frame) Strings(name string) ([]string, error) {
	s, err := f.series("dataframe.Strings", name)
	if err != nil {
		return nil, err
	}
	kind := kindOf(s.Type())
	out := make([]string, s.Len())
	for i := range out {
		out[i] = formatElem(s.Elem(i), kind)
	}
	return out, nil
}

// Records はヘッダー行に続けて全行を文字列で返す。欠損値は空文字列
func (f *Frame) Records() [][]string {
	names := f.df.Names()
	kinds := f.Kinds()
	out := make([][]string, 0, f.Rows()+1)
	out = append(out, append([]string(nil), names...))
	cols := make([]series.Series, len(names))
	for j, n := range names {
		cols[j] = f.df.Col(n)
	}
	for i := 0; i < f.Rows(); i++ {
		row := make([]string, len(names))
		for j := range names {
			row[j] = formatElem(cols[j].Elem(i), kinds[j])
		}
		out = append(out, row)
	}
	return out
}

func (f *Frame) String() string {
	r, c := f.Shape()
	return fmt.Sprintf("Frame[%d x %d]", r, c)
}

func (f *Frame) logger() log.Logger {
	r, c := f.Shape()
	return log.GetLoggerWithName("dataframe").With(log.FrameRowsKey, r, log.FrameColumnsKey, c)
}

func isMissing(e series.Element) bool {
	if e.IsNA() {
		return true
	}
	return e.Type() == series.Float && math.IsNaN(e.Float())
}

func elemFloat(e series.Element) float64 {
	if isMissing(e) {
		return math.NaN()
	}
	return e.Float()
}

func formatElem(e series.Element, kind Kind) string {
	if isMissing(e) {
		return ""
	}
	if kind == KindFloat {
		return strconv.FormatFloat(e.Float(), 'f', -1, 64)
	}
	return e.String()
}

// intSeries builds an int series where missing[i] marks an NA element.
func intSeries(name string, values []int, missing []bool) series.Series {
	vals := make([]string, len(values))
	for i, v := range values {
		if missing != nil && missing[i] {
			vals[i] = missingToken
			continue
		}
		vals[i] = strconv.Itoa(v)
	}
	return series.New(vals, series.Int, name)
}
