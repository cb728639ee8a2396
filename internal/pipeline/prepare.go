// Package pipeline は explore / explain の2つのウォークスルー。
// どちらも1本の直線的な手順で、最初のエラーで止まる。
package pipeline

import (
	"io"
	"math"
	"slices"

	"github.com/YuminosukeSato/censusml/dataframe"
	"github.com/YuminosukeSato/censusml/internal/config"
	"github.com/YuminosukeSato/censusml/internal/report"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

// Runner は設定と出力先を持ち、各ウォークスルーを実行する
type Runner struct {
	cfg    *config.Config
	out    io.Writer
	logger log.Logger
}

// New returns a Runner that prints to out.
func New(cfg *config.Config, out io.Writer) *Runner {
	return &Runner{cfg: cfg, out: out, logger: log.GetLoggerWithName("pipeline")}
}

// DecadeBucket は年齢を10歳刻みの下端に丸める
func DecadeBucket(age float64) float64 {
	return math.Floor(age/10) * 10
}

// prepare は読み込みから one-hot までの共通手順。verbose なら途中の表を出す
func (r *Runner) prepare(verbose bool) (*dataframe.Frame, error) {
	cfg := r.cfg

	f, err := dataframe.ReadCSV(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	rows, cols := f.Shape()
	report.PrintShape(r.out, "loaded "+cfg.DataPath, rows, cols)
	if verbose && cfg.PreviewRows > 0 {
		report.PrintFrame(r.out, "head", f.Head(cfg.PreviewRows))
	}

	if len(cfg.Columns) > 0 {
		if f, err = f.Select(cfg.Columns...); err != nil {
			return nil, err
		}
	}

	kinds, err := cfg.Kinds()
	if err != nil {
		return nil, err
	}
	castCols := make([]string, 0, len(kinds))
	for col := range kinds {
		castCols = append(castCols, col)
	}
	slices.Sort(castCols)
	for _, col := range castCols {
		if f, err = f.Cast(col, kinds[col]); err != nil {
			return nil, err
		}
	}

	if cfg.AgeBucketColumn != "" {
		if f, err = f.ApplyAs(cfg.AgeColumn, cfg.AgeBucketColumn, DecadeBucket); err != nil {
			return nil, err
		}
	}

	if f, err = f.SortBy(cfg.Target, true); err != nil {
		return nil, err
	}
	if verbose && cfg.PreviewRows > 0 {
		report.PrintFrame(r.out, "sorted by "+cfg.Target+" (descending)", f.Head(cfg.PreviewRows))
	}

	if cfg.AgeColumn != "" && cfg.AdultAge > 0 {
		if f, err = f.Filter(cfg.AgeColumn, ">=", cfg.AdultAge); err != nil {
			return nil, err
		}
	}
	if f, err = f.DropMissing(); err != nil {
		return nil, err
	}

	for _, col := range cfg.Categorical {
		if f, err = f.OneHot(col); err != nil {
			return nil, err
		}
	}

	rows, cols = f.Shape()
	if rows == 0 {
		return nil, errors.NewValueError("pipeline.prepare", "no rows left after filtering")
	}
	report.PrintShape(r.out, "prepared", rows, cols)
	if verbose && cfg.PreviewRows > 0 {
		report.PrintFrame(r.out, "prepared", f.Head(cfg.PreviewRows))
	}
	r.logger.Info("frame prepared", log.FrameRowsKey, rows, log.FrameColumnsKey, cols)
	return f, nil
}

// featureNames は target 以外の全ての列
func (r *Runner) featureNames(f *dataframe.Frame) []string {
	var out []string
	for _, name := range f.Names() {
		if name != r.cfg.Target {
			out = append(out, name)
		}
	}
	return out
}

func (r *Runner) split(f *dataframe.Frame) (train, validation *dataframe.Frame, err error) {
	train, validation, err = f.SplitValidation(r.cfg.ValidationFraction, dataframe.SplitOptions{
		Shuffle: r.cfg.Shuffle,
		Seed:    r.cfg.Seed,
	})
	if err != nil {
		return nil, nil, err
	}
	if validation.Rows() == 0 {
		return nil, nil, errors.NewValueError("pipeline.split", "validation part is empty")
	}
	return train, validation, nil
}
