package dataframe

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"github.com/YuminosukeSato/censusml/preprocessing"
)

type oneHotConfig struct {
	prefix     string
	categories []string
	keepSource bool
}

// OneHotOption は OneHot の設定
type OneHotOption func(*oneHotConfig)

// WithPrefix は出力列名の接頭辞を指定する（デフォルトは元の列名）
func WithPrefix(prefix string) OneHotOption {
	return func(c *oneHotConfig) { c.prefix = prefix }
}

// WithCategories はカテゴリを固定する。一覧にない値はすべて0になる
func WithCategories(categories ...string) OneHotOption {
	return func(c *oneHotConfig) { c.categories = append([]string(nil), categories...) }
}

// KeepSource は元の列を残す
func KeepSource() OneHotOption {
	return func(c *oneHotConfig) { c.keepSource = true }
}

// OneHot はカテゴリごとの 0/1 の int 列で列を置き換える。
// 出力列は "<prefix>_<value>" で、値の昇順（数値列なら数値順）に元の列の位置へ並ぶ。
// 欠損値の行はすべて0になる。
func (f *Frame) OneHot(name string, opts ...OneHotOption) (*Frame, error) {
	s, err := f.series("dataframe.OneHot", name)
	if err != nil {
		return nil, err
	}
	cfg := oneHotConfig{prefix: name}
	for _, opt := range opts {
		opt(&cfg)
	}

	kind := kindOf(s.Type())
	values := make([]string, s.Len())
	missing := make([]bool, s.Len())
	present := make([]string, 0, s.Len())
	for i := range values {
		e := s.Elem(i)
		if isMissing(e) {
			missing[i] = true
			continue
		}
		values[i] = formatElem(e, kind)
		present = append(present, values[i])
	}

	var enc *preprocessing.OneHotEncoder
	if cfg.categories != nil {
		enc = preprocessing.NewOneHotEncoderWithCategories(cfg.categories...)
	} else {
		if len(present) == 0 {
			return nil, errors.NewValueError("dataframe.OneHot", fmt.Sprintf("column %q has no non-missing values", name))
		}
		enc = preprocessing.NewOneHotEncoder()
		if err := enc.Fit(present); err != nil {
			return nil, errors.Wrap(err, "dataframe.OneHot")
		}
	}
	if f.Rows() == 0 {
		return nil, errors.NewValueError("dataframe.OneHot", "frame has no rows")
	}
	encoded, err := enc.Transform(values)
	if err != nil {
		return nil, errors.Wrap(err, "dataframe.OneHot")
	}

	names := enc.FeatureNames(cfg.prefix)
	indicators := make([]series.Series, len(names))
	for j, col := range names {
		if f.Has(col) && !(col == name && !cfg.keepSource) {
			return nil, errors.NewValueError("dataframe.OneHot", fmt.Sprintf("output column %q already exists", col))
		}
		bits := make([]int, len(values))
		for i := range bits {
			if !missing[i] && encoded.At(i, j) == 1 {
				bits[i] = 1
			}
		}
		indicators[j] = series.New(bits, series.Int, col)
	}

	cols := make([]series.Series, 0, len(f.df.Names())+len(indicators))
	for _, n := range f.df.Names() {
		if n != name {
			cols = append(cols, f.df.Col(n))
			continue
		}
		if cfg.keepSource {
			cols = append(cols, s)
		}
		cols = append(cols, indicators...)
	}

	out, err := wrap("dataframe.OneHot", dataframe.New(cols...))
	if err != nil {
		return nil, err
	}
	out.logger().Debug("column one-hot encoded", log.ColumnKey, name, "categories", len(names))
	return out, nil
}
