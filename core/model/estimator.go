package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilisticClassifier はクラス確率を出力できる分類器のインターフェース。
// KernelExplainer はこのインターフェースを通してモデルを呼び出す。
type ProbabilisticClassifier interface {
	Fitter
	Predictor
	// PredictProba は各クラスの確率 (n_samples × n_classes) を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	// Classes は学習時に見たクラスラベルを昇順で返す
	Classes() []int
}
