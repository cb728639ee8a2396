// Package linear_model は線形分類モデル。
package linear_model

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/censusml/core/model"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.ProbabilisticClassifier = (*LogisticRegression)(nil)
	_ model.ParameterSetter         = (*LogisticRegression)(nil)
)

// LogisticRegression はL2正則化付き勾配降下法で学習するロジスティック回帰。
// 2クラスは1本の重み、3クラス以上は one-vs-rest で学習する。
type LogisticRegression struct {
	model.BaseEstimator

	// ハイパーパラメータ
	penalty      string  // "l2" または "none"
	C            float64 // 正則化の強さの逆数
	fitIntercept bool
	maxIter      int
	tol          float64
	learningRate float64

	// 学習済みパラメータ
	coef_      *mat.Dense // n_models × n_features
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nFeatures_ int
	nIter_     []int
}

// LogisticRegressionOption は LogisticRegression の設定
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression は新しいロジスティック回帰を作成する
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      1000,
		tol:          1e-4,
		learningRate: 1.0,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty は正則化の種類を指定する
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC は正則化の強さの逆数を指定する
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLRFitIntercept は切片を学習するかを指定する
func WithLRFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRMaxIter は最大反復回数を指定する
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol は収束判定の閾値（勾配の最大絶対値）を指定する
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRLearningRate は初期学習率を指定する。学習率は rate/(1+0.01*iter) で減衰する
func WithLRLearningRate(rate float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.learningRate = rate }
}

func (lr *LogisticRegression) validate() error {
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValidationError("penalty", "must be l2 or none", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", lr.maxIter)
	}
	if lr.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", lr.learningRate)
	}
	return nil
}

// Fit はモデルを学習する。y は n×1 のクラスラベル
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", fmt.Sprintf("y must be a column vector, got %d columns", yCols))
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	lr.Reset()
	lr.extractClasses(y)
	if lr.nClasses_ < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "y must contain at least two classes")
	}
	lr.nFeatures_ = nFeatures

	nModels := 1
	if lr.nClasses_ > 2 {
		nModels = lr.nClasses_
	}
	lr.coef_ = mat.NewDense(nModels, nFeatures, nil)
	lr.intercept_ = make([]float64, nModels)
	lr.nIter_ = make([]int, nModels)

	Xd := mat.DenseCopyOf(X)
	for m := 0; m < nModels; m++ {
		positive := lr.classes_[len(lr.classes_)-1]
		if nModels > 1 {
			positive = lr.classes_[m]
		}
		target := mat.NewVecDense(nSamples, nil)
		for i := 0; i < nSamples; i++ {
			if int(y.At(i, 0)) == positive {
				target.SetVec(i, 1)
			}
		}
		lr.fitBinary(Xd, target, m)
	}

	lr.SetFitted()
	log.GetLoggerWithName("linear_model").Debug("logistic regression fitted",
		log.ModelNameKey, "LogisticRegression",
		log.EstimatorIDKey, lr.EstimatorID(),
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, lr.nClasses_,
		log.IterationKey, lr.nIter_,
	)
	return nil
}

func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	lr.classes_ = nil
	for i := 0; i < rows; i++ {
		c := int(y.At(i, 0))
		if !seen[c] {
			seen[c] = true
			lr.classes_ = append(lr.classes_, c)
		}
	}
	sort.Ints(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

// fitBinary は m 番目の重みを勾配降下法で学習する。
// 目的関数は平均対数損失 + ||w||^2 / (2 C n)。
func (lr *LogisticRegression) fitBinary(X *mat.Dense, target *mat.VecDense, m int) {
	nSamples, nFeatures := X.Dims()
	w := mat.NewVecDense(nFeatures, nil)
	var b float64

	var lambda float64
	if lr.penalty == "l2" {
		lambda = 1 / (lr.C * float64(nSamples))
	}

	var z, grad mat.VecDense
	resid := mat.NewVecDense(nSamples, nil)
	converged := false
	for iter := 0; iter < lr.maxIter; iter++ {
		z.MulVec(X, w)
		var gradB float64
		for i := 0; i < nSamples; i++ {
			r := sigmoid(z.AtVec(i)+b) - target.AtVec(i)
			resid.SetVec(i, r)
			gradB += r
		}
		gradB /= float64(nSamples)

		grad.MulVec(X.T(), resid)
		grad.ScaleVec(1/float64(nSamples), &grad)
		grad.AddScaledVec(&grad, lambda, w)

		rate := lr.learningRate / (1.0 + 0.01*float64(iter))
		w.AddScaledVec(w, -rate, &grad)
		if lr.fitIntercept {
			b -= rate * gradB
		}
		lr.nIter_[m] = iter + 1

		maxGrad := mat.Norm(&grad, math.Inf(1))
		if lr.fitIntercept {
			maxGrad = math.Max(maxGrad, math.Abs(gradB))
		}
		if maxGrad < lr.tol {
			converged = true
			break
		}
	}

	lr.coef_.SetRow(m, w.RawVector().Data)
	lr.intercept_[m] = b
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
			"gradient descent did not reach tol; increase max_iter or scale the features"))
	}
}

func (lr *LogisticRegression) checkInput(op string, X mat.Matrix) error {
	if !lr.IsFitted() {
		return errors.NewNotFittedError("LogisticRegression", op)
	}
	if _, c := X.Dims(); c != lr.nFeatures_ {
		return errors.NewDimensionError("LogisticRegression."+op, lr.nFeatures_, c, 1)
	}
	return nil
}

// DecisionFunction は各モデルの線形スコア (n_samples × n_models) を返す
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.checkInput("DecisionFunction", X); err != nil {
		return nil, err
	}
	var scores mat.Dense
	scores.Mul(X, lr.coef_.T())
	scores.Apply(func(_, j int, v float64) float64 { return v + lr.intercept_[j] }, &scores)
	return &scores, nil
}

// PredictProba は各クラスの確率 (n_samples × n_classes) を返す。
// one-vs-rest ではクラスごとのシグモイドを行ごとに正規化する。
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := scores.Dims()
	probas := mat.NewDense(n, lr.nClasses_, nil)
	for i := 0; i < n; i++ {
		if lr.nClasses_ == 2 {
			p := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		var sum float64
		for k := 0; k < lr.nClasses_; k++ {
			p := sigmoid(scores.At(i, k))
			probas.Set(i, k, p)
			sum += p
		}
		for k := 0; k < lr.nClasses_; k++ {
			probas.Set(i, k, probas.At(i, k)/sum)
		}
	}
	return probas, nil
}

// Predict は最も確率の高いクラスラベル (n_samples × 1) を返す
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := probas.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if probas.At(i, j) > probas.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(lr.classes_[best]))
	}
	return out, nil
}

// Score は正解率を返す。未学習や次元不一致の場合は 0
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := y.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// Classes は学習時のクラスラベルを昇順で返す
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef は学習済みの重み (n_models × n_features) のコピーを返す
func (lr *LogisticRegression) Coef() *mat.Dense {
	if lr.coef_ == nil {
		return nil
	}
	return mat.DenseCopyOf(lr.coef_)
}

// Intercept は学習済みの切片を返す
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter は各モデルの反復回数を返す
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams はハイパーパラメータを返す
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"learning_rate": lr.learningRate,
	}
}

// SetParams はハイパーパラメータを設定する
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "tol":
			lr.tol, ok = value.(float64)
		case "learning_rate":
			lr.learningRate, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return lr.validate()
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
