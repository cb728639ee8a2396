package plot

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/censusml/explain/shap"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SummaryOptions は SummaryBar の表示設定
type SummaryOptions struct {
	MaxFeatures int
	Title       string
	Width       vg.Length
	Height      vg.Length
}

// SummaryBar は特徴量ごとの mean(|SHAP|) を大きい順に並べた横棒グラフを作る
func SummaryBar(e *shap.Explanation, o SummaryOptions) (*plot.Plot, error) {
	if e == nil || e.Rows() == 0 {
		return nil, errors.NewValueError("SummaryBar", "explanation has no rows")
	}

	means := e.MeanAbs()
	order := make([]int, len(means))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return means[order[a]] > means[order[b]] })
	if o.MaxFeatures > 0 && len(order) > o.MaxFeatures {
		order = order[:o.MaxFeatures]
	}

	// 最大の特徴量を上に置くため逆順で並べる
	values := make(plotter.Values, len(order))
	names := make([]string, len(order))
	for i, j := range order {
		k := len(order) - 1 - i
		values[k] = means[j]
		names[k] = e.FeatureNames[j]
	}

	p := plot.New()
	p.Title.Text = o.Title
	if p.Title.Text == "" {
		p.Title.Text = fmt.Sprintf("mean(|SHAP value|) over %d rows", e.Rows())
	}
	p.X.Label.Text = "mean(|SHAP value|)"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, errors.Wrap(err, "SummaryBar")
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 0x00, G: 0x8b, B: 0xfb, A: 0xff}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

// SavePlot は拡張子（.png / .svg）に応じた形式で p を保存する
func SavePlot(p *plot.Plot, path string, o SummaryOptions) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".svg":
	default:
		return errors.NewValidationError("path", "extension must be .png or .svg", path)
	}
	w, h := o.Width, o.Height
	if w == 0 {
		w = 6 * vg.Inch
	}
	if h == 0 {
		h = 4 * vg.Inch
	}
	if err := p.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	log.GetLoggerWithName("plot").Info("plot written",
		log.OperationKey, log.OperationRender,
		"path", path,
	)
	return nil
}
