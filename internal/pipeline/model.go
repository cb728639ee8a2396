package pipeline

import (
	"github.com/YuminosukeSato/censusml/core/model"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/preprocessing"
	"github.com/YuminosukeSato/censusml/sklearn/linear_model"
	"gonum.org/v1/gonum/mat"
)

var _ model.ProbabilisticClassifier = (*scaledLogistic)(nil)

// scaledLogistic は標準化してからロジスティック回帰にかける分類器。
// 入力は元の単位のままなので、Kernel SHAP の値も元の単位の特徴量に対するものになる。
type scaledLogistic struct {
	scaler *preprocessing.StandardScaler
	lr     *linear_model.LogisticRegression
}

func newScaledLogistic() *scaledLogistic {
	return &scaledLogistic{
		scaler: preprocessing.NewStandardScalerDefault(),
		lr:     linear_model.NewLogisticRegression(),
	}
}

func (m *scaledLogistic) Fit(X, y mat.Matrix) error {
	Xs, err := m.scaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "scaledLogistic.Fit")
	}
	return m.lr.Fit(Xs, y)
}

func (m *scaledLogistic) transform(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := m.scaler.Transform(X)
	if err != nil {
		return nil, errors.Wrap(err, "scaledLogistic")
	}
	return Xs, nil
}

func (m *scaledLogistic) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := m.transform(X)
	if err != nil {
		return nil, err
	}
	return m.lr.Predict(Xs)
}

func (m *scaledLogistic) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := m.transform(X)
	if err != nil {
		return nil, err
	}
	return m.lr.PredictProba(Xs)
}

func (m *scaledLogistic) Classes() []int { return m.lr.Classes() }
