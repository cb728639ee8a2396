package dataframe

import (
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

// DefaultNaNTokens are the field values read as missing.
var DefaultNaNTokens = []string{"", "NA", "NaN", "N/A", "<nil>"}

type loadConfig struct {
	delimiter rune
	columns   []string
	kinds     map[string]Kind
	nanTokens []string
	maxRows   int
}

// LoadOption は CSV 読み込みの設定
type LoadOption func(*loadConfig)

// WithDelimiter は区切り文字を指定する（デフォルトは ','）
func WithDelimiter(r rune) LoadOption {
	return func(c *loadConfig) { c.delimiter = r }
}

// WithColumns は読み込む列を指定順に絞り込む
func WithColumns(names ...string) LoadOption {
	return func(c *loadConfig) { c.columns = append([]string(nil), names...) }
}

// WithKinds は列の種類を明示する。指定のない列は自動判定する
func WithKinds(kinds map[string]Kind) LoadOption {
	return func(c *loadConfig) {
		c.kinds = make(map[string]Kind, len(kinds))
		for k, v := range kinds {
			c.kinds[k] = v
		}
	}
}

// WithNaNTokens は欠損値として扱うトークンを置き換える
func WithNaNTokens(tokens ...string) LoadOption {
	return func(c *loadConfig) { c.nanTokens = append([]string(nil), tokens...) }
}

// WithMaxRows は読み込む行数の上限を指定する。0 以下は無制限
func WithMaxRows(n int) LoadOption {
	return func(c *loadConfig) { c.maxRows = n }
}

// ReadCSV はヘッダー付きの区切りファイルを読み込む
//
//	df, err := dataframe.ReadCSV("testdata/census_sample.csv",
//		dataframe.WithColumns("AGE", "SEX", "INCTOT"),
//		dataframe.WithKinds(map[string]dataframe.Kind{"SEX": dataframe.KindCategory}))
func ReadCSV(path string, opts ...LoadOption) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataframe.ReadCSV: open %s", path)
	}
	defer fh.Close()

	f, err := ReadCSVFrom(fh, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dataframe.ReadCSV: %s", path)
	}
	f.logger().Info("csv loaded", log.SourceKey, path)
	return f, nil
}

// ReadCSVFrom は r から CSV を読み込む
func ReadCSVFrom(r io.Reader, opts ...LoadOption) (*Frame, error) {
	cfg := loadConfig{delimiter: ',', nanTokens: DefaultNaNTokens}
	for _, opt := range opts {
		opt(&cfg)
	}

	gopts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.WithDelimiter(cfg.delimiter),
		dataframe.NaNValues(cfg.nanTokens),
	}
	if len(cfg.kinds) > 0 {
		types := make(map[string]series.Type, len(cfg.kinds))
		for name, k := range cfg.kinds {
			types[name] = k.seriesType()
		}
		gopts = append(gopts, dataframe.WithTypes(types))
	}

	df := dataframe.ReadCSV(r, gopts...)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "dataframe.ReadCSVFrom")
	}
	f := &Frame{df: normalizeBools(df)}

	for name := range cfg.kinds {
		if !f.Has(name) {
			return nil, errors.NewColumnNotFoundError("dataframe.ReadCSVFrom", name, f.Names())
		}
	}
	if len(cfg.columns) > 0 {
		var err error
		if f, err = f.Select(cfg.columns...); err != nil {
			return nil, err
		}
	}
	if cfg.maxRows > 0 {
		f = f.Head(cfg.maxRows)
	}
	return f, nil
}

// normalizeBools stores detected bool columns as 0/1 int columns.
func normalizeBools(df dataframe.DataFrame) dataframe.DataFrame {
	for _, name := range df.Names() {
		s := df.Col(name)
		if s.Type() != series.Bool {
			continue
		}
		vals := make([]int, s.Len())
		missing := make([]bool, s.Len())
		for i := range vals {
			e := s.Elem(i)
			if e.IsNA() {
				missing[i] = true
				continue
			}
			if b, err := e.Bool(); err == nil && b {
				vals[i] = 1
			}
		}
		df = df.Mutate(intSeries(name, vals, missing))
	}
	return df
}
