package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/censusml/dataframe"
	"github.com/YuminosukeSato/censusml/explain/plot"
	"github.com/YuminosukeSato/censusml/explain/shap"
	"github.com/YuminosukeSato/censusml/internal/report"
	"github.com/YuminosukeSato/censusml/metrics"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"github.com/YuminosukeSato/censusml/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// additivityTolerance は TreeSHAP の sum(SHAP) + base と出力の許容誤差
const additivityTolerance = 1e-6

// ExplainResult は explain の最終状態
type ExplainResult struct {
	Features []string

	TreeAccuracy     float64
	TreeAUC          float64
	TreeBrier        float64
	TreeLogLoss      float64
	LogisticAccuracy float64

	Tree   *shap.Explanation
	Kernel *shap.Explanation

	// 書き出したファイル
	TreeForcePath   string
	KernelForcePath string
	SummaryPath     string
}

// labels は target > threshold を 1、それ以外を 0 にした n×1 行列
func (r *Runner) labels(f *dataframe.Frame) (*mat.Dense, error) {
	target, err := f.Column(r.cfg.Target)
	if err != nil {
		return nil, err
	}
	y := mat.NewDense(len(target), 1, nil)
	for i, v := range target {
		if v > r.cfg.TargetThreshold {
			y.Set(i, 0, 1)
		}
	}
	return y, nil
}

func (r *Runner) xy(f *dataframe.Frame, features []string) (*mat.Dense, *mat.Dense, error) {
	X, err := f.Matrix(features...)
	if err != nil {
		return nil, nil, err
	}
	y, err := r.labels(f)
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}

// Explain は決定木と標準化ロジスティック回帰を学習し、
// TreeSHAP と Kernel SHAP の結果を表と図で出力する
func (r *Runner) Explain(ctx context.Context) (*ExplainResult, error) {
	cfg := r.cfg
	start := time.Now()
	r.logger.Info("explain started", log.SourceKey, cfg.DataPath, log.RandomSeedKey, cfg.Seed)

	f, err := r.prepare(false)
	if err != nil {
		return nil, err
	}
	train, validation, err := r.split(f)
	if err != nil {
		return nil, err
	}
	features := r.featureNames(f)
	res := &ExplainResult{Features: features}

	Xtr, ytr, err := r.xy(train, features)
	if err != nil {
		return nil, err
	}
	Xva, yva, err := r.xy(validation, features)
	if err != nil {
		return nil, err
	}
	report.PrintShape(r.out, "train X", Xtr.RawMatrix().Rows, Xtr.RawMatrix().Cols)
	report.PrintShape(r.out, "validation X", Xva.RawMatrix().Rows, Xva.RawMatrix().Cols)

	// decision tree
	clf := tree.NewDecisionTreeClassifier(
		tree.WithCriterion(cfg.Criterion),
		tree.WithMaxDepth(cfg.MaxDepth),
		tree.WithRandomState(cfg.Seed),
	)
	if err := clf.Fit(Xtr, ytr); err != nil {
		return nil, err
	}
	if err := r.scoreTree(clf, Xva, yva, res); err != nil {
		return nil, err
	}

	n := min(cfg.ExplainRows, Xva.RawMatrix().Rows)
	explainX := Xva.Slice(0, n, 0, len(features))

	treeExp, err := shap.NewTreeExplainer(clf, shap.WithFeatureNames(features...), shap.WithWorkers(cfg.Workers))
	if err != nil {
		return nil, err
	}
	if res.Tree, err = treeExp.Explain(ctx, explainX); err != nil {
		return nil, err
	}
	if err := checkAdditivity(res.Tree); err != nil {
		return nil, err
	}
	report.PrintExplanation(r.out, "TreeSHAP (validation rows)", res.Tree)
	report.PrintContributions(r.out, res.Tree, 0, 5)

	// standardized logistic regression
	lr := newScaledLogistic()
	if err := lr.Fit(Xtr, ytr); err != nil {
		return nil, err
	}
	pred, err := lr.Predict(Xva)
	if err != nil {
		return nil, err
	}
	yTrue := mat.NewVecDense(yva.RawMatrix().Rows, mat.Col(nil, 0, yva))
	if res.LogisticAccuracy, err = metrics.Accuracy(yTrue, mat.NewVecDense(yTrue.Len(), mat.Col(nil, 0, pred))); err != nil {
		return nil, err
	}
	report.PrintMetrics(r.out, "logistic regression (validation)", []report.Metric{{Name: "accuracy", Value: res.LogisticAccuracy}})

	if res.Kernel, err = r.explainKernel(ctx, lr, Xtr, explainX, features); err != nil {
		return nil, err
	}
	report.PrintExplanation(r.out, "Kernel SHAP (validation rows)", res.Kernel)

	if err := r.render(res); err != nil {
		return nil, err
	}

	r.logger.Info("explain finished",
		log.AccuracyKey, res.TreeAccuracy,
		log.AUCKey, res.TreeAUC,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (r *Runner) scoreTree(clf *tree.DecisionTreeClassifier, X, y *mat.Dense, res *ExplainResult) error {
	proba, err := clf.PredictProba(X)
	if err != nil {
		return err
	}
	pred, err := clf.Predict(X)
	if err != nil {
		return err
	}
	yTrue := mat.NewVecDense(y.RawMatrix().Rows, mat.Col(nil, 0, y))

	// 学習データが1クラスだけなら陽性確率は 0 とみなす
	pos := mat.NewVecDense(yTrue.Len(), nil)
	if classes := clf.Classes(); classes[len(classes)-1] == 1 {
		pos = mat.NewVecDense(yTrue.Len(), mat.Col(nil, len(classes)-1, proba))
	}
	predVec := mat.NewVecDense(yTrue.Len(), mat.Col(nil, 0, pred))

	if res.TreeAccuracy, err = metrics.Accuracy(yTrue, predVec); err != nil {
		return err
	}
	if res.TreeAUC, err = metrics.AUC(yTrue, pos); err != nil {
		return err
	}
	if res.TreeBrier, err = metrics.BrierScore(yTrue, pos); err != nil {
		return err
	}
	if res.TreeLogLoss, err = metrics.BinaryLogLoss(yTrue, pos); err != nil {
		return err
	}
	report.PrintMetrics(r.out, "decision tree (validation)", []report.Metric{
		{Name: "accuracy", Value: res.TreeAccuracy},
		{Name: "auc", Value: res.TreeAUC},
		{Name: "brier", Value: res.TreeBrier},
		{Name: "log loss", Value: res.TreeLogLoss},
		{Name: "depth", Value: float64(clf.GetDepth())},
		{Name: "leaves", Value: float64(clf.GetNLeaves())},
	})
	return nil
}

// checkAdditivity は sum(SHAP) + base と出力の平均絶対誤差を確かめる
func checkAdditivity(e *shap.Explanation) error {
	recon := mat.NewVecDense(e.Rows(), nil)
	for i, g := range e.AdditivityGap() {
		recon.SetVec(i, e.Output[i]+g)
	}
	mae, err := metrics.MAE(mat.NewVecDense(e.Rows(), append([]float64(nil), e.Output...)), recon)
	if err != nil {
		return err
	}
	if mae > additivityTolerance {
		return errors.NewModelError("TreeExplainer", "additivity",
			errors.Newf("mean |sum(shap) + base - output| = %g", mae))
	}
	return nil
}

func (r *Runner) explainKernel(ctx context.Context, m *scaledLogistic, Xtr *mat.Dense, X mat.Matrix, features []string) (*shap.Explanation, error) {
	cfg := r.cfg
	classes := m.Classes()
	predict, err := shap.PredictProbaFunc(m, classes[len(classes)-1])
	if err != nil {
		return nil, err
	}

	opts := []shap.Option{
		shap.WithFeatureNames(features...),
		shap.WithNSamples(cfg.KernelSamples),
		shap.WithSeed(cfg.Seed),
		shap.WithWorkers(cfg.Workers),
	}
	var background *mat.Dense
	switch cfg.BackgroundMethod {
	case "kmeans":
		var weights []float64
		if background, weights, err = shap.KMeansBackground(Xtr, cfg.BackgroundSize, cfg.Seed); err != nil {
			return nil, err
		}
		opts = append(opts, shap.WithBackgroundWeights(weights))
	default:
		if background, err = shap.SampleBackground(Xtr, cfg.BackgroundSize, cfg.Seed); err != nil {
			return nil, err
		}
	}

	exp, err := shap.NewKernelExplainer(predict, background, opts...)
	if err != nil {
		return nil, err
	}
	return exp.Explain(ctx, X)
}

// render は force plot の HTML と summary bar の PNG を OutputDir に書き出す
func (r *Runner) render(res *ExplainResult) (err error) {
	defer errors.Recover(&err, "pipeline.render")
	dir := r.cfg.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	rows := func(e *shap.Explanation) []int {
		out := make([]int, e.Rows())
		for i := range out {
			out[i] = i
		}
		return out
	}

	for _, item := range []struct {
		exp   *shap.Explanation
		title string
		path  *string
		file  string
	}{
		{res.Tree, "TreeSHAP", &res.TreeForcePath, "tree_force.html"},
		{res.Kernel, "Kernel SHAP", &res.KernelForcePath, "kernel_force.html"},
	} {
		page, err := plot.ForcePlotPage(item.exp, rows(item.exp), plot.ForceOptions{Title: item.title, MaxFeatures: 10})
		if err != nil {
			return err
		}
		path := filepath.Join(dir, item.file)
		if err := plot.WriteHTML(page, path); err != nil {
			return err
		}
		*item.path = path
	}

	p, err := plot.SummaryBar(res.Tree, plot.SummaryOptions{MaxFeatures: 15})
	if err != nil {
		return err
	}
	res.SummaryPath = filepath.Join(dir, "tree_summary.png")
	if err := plot.SavePlot(p, res.SummaryPath, plot.SummaryOptions{}); err != nil {
		return err
	}

	for _, path := range []string{res.TreeForcePath, res.KernelForcePath, res.SummaryPath} {
		_, _ = fmt.Fprintf(r.out, "wrote %s\n", path)
	}
	return nil
}
