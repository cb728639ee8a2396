package dataframe

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/censusml/pkg/errors"
)

// Matrix は指定した数値列（省略時はすべての列）を rows x len(names) の密行列にする。
// カテゴリ列や欠損値を含む列はエラーになる。
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = f.Names()
	}
	if err := f.checkColumns("dataframe.Matrix", names); err != nil {
		return nil, err
	}
	rows := f.Rows()
	if rows == 0 {
		return nil, errors.NewModelError("dataframe.Matrix", "empty frame", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, len(names), nil)
	for j, name := range names {
		s := f.df.Col(name)
		if kind := kindOf(s.Type()); !kind.Numeric() {
			return nil, errors.NewValueError("dataframe.Matrix", fmt.Sprintf("column %q is %s; one-hot encode or cast it first", name, kind))
		}
		for i := 0; i < rows; i++ {
			e := s.Elem(i)
			if isMissing(e) {
				return nil, errors.NewValueError("dataframe.Matrix", fmt.Sprintf("column %q has a missing value at row %d", name, i))
			}
			out.Set(i, j, e.Float())
		}
	}
	return out, nil
}
