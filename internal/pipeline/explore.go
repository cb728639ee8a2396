package pipeline

import (
	"context"

	"github.com/YuminosukeSato/censusml/dataframe"
	"github.com/YuminosukeSato/censusml/internal/report"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

// ExploreResult は explore の最終状態
type ExploreResult struct {
	Frame      *dataframe.Frame
	Train      *dataframe.Frame
	Validation *dataframe.Frame
	Features   []string
	// TrainShape / ValidationShape は特徴量行列の (rows, cols)
	TrainShape      [2]int
	ValidationShape [2]int
}

// Explore は読み込み、変換、要約統計、分割、行列化を順に行い、途中経過を出力する
func (r *Runner) Explore(ctx context.Context) (*ExploreResult, error) {
	r.logger.Info("explore started", log.SourceKey, r.cfg.DataPath)

	f, err := r.prepare(true)
	if err != nil {
		return nil, err
	}
	report.PrintSummary(r.out, f.Describe())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	train, validation, err := r.split(f)
	if err != nil {
		return nil, err
	}
	features := r.featureNames(f)

	res := &ExploreResult{Frame: f, Train: train, Validation: validation, Features: features}
	for _, part := range []struct {
		label string
		frame *dataframe.Frame
		shape *[2]int
	}{
		{"train X", train, &res.TrainShape},
		{"validation X", validation, &res.ValidationShape},
	} {
		X, err := part.frame.Matrix(features...)
		if err != nil {
			return nil, err
		}
		rows, cols := X.Dims()
		*part.shape = [2]int{rows, cols}
		report.PrintShape(r.out, part.label, rows, cols)
	}

	r.logger.Info("explore finished",
		log.SamplesKey, res.TrainShape[0]+res.ValidationShape[0],
		log.FeaturesKey, len(features),
	)
	return res, nil
}
