// Package plot は SHAP 値の可視化。
// ForcePlot は go-echarts による HTML、SummaryBar は gonum/plot による PNG/SVG を出力する。
package plot

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/YuminosukeSato/censusml/explain/shap"
	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// 出力を押し上げる寄与と押し下げる寄与の色
const (
	PositiveColor = "#ff0051"
	NegativeColor = "#008bfb"
)

// ForceOptions は ForcePlot の表示設定
type ForceOptions struct {
	// MaxFeatures は表示する特徴量の上限。0 なら全て
	MaxFeatures int
	// Title が空なら "row <i>"
	Title  string
	Width  string
	Height string
}

func (o ForceOptions) withDefaults() ForceOptions {
	if o.Width == "" {
		o.Width = "900px"
	}
	if o.Height == "" {
		o.Height = "480px"
	}
	return o
}

// ForcePlot は1行の寄与を |SHAP| の大きい順に並べた横棒グラフを作る。
// 正の寄与は PositiveColor、負の寄与は NegativeColor で塗る。
func ForcePlot(e *shap.Explanation, row int, o ForceOptions) (*charts.Bar, error) {
	if e == nil || row < 0 || row >= e.Rows() {
		return nil, errors.NewValueError("ForcePlot", fmt.Sprintf("row %d out of range", row))
	}
	o = o.withDefaults()

	contribs := e.Contributions(row)
	if o.MaxFeatures > 0 && len(contribs) > o.MaxFeatures {
		contribs = contribs[:o.MaxFeatures]
	}
	// 横棒は下から描かれるので最大の寄与を最後に置く
	labels := make([]string, len(contribs))
	data := make([]opts.BarData, len(contribs))
	for i, c := range contribs {
		k := len(contribs) - 1 - i
		labels[k] = c.Feature + " = " + strconv.FormatFloat(c.Value, 'g', 4, 64)
		color := PositiveColor
		if c.SHAP < 0 {
			color = NegativeColor
		}
		data[k] = opts.BarData{
			Name:      c.Feature,
			Value:     c.SHAP,
			ItemStyle: &opts.ItemStyle{Color: color},
		}
	}

	title := o.Title
	if title == "" {
		title = fmt.Sprintf("row %d", row)
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "SHAP force plot", Width: o.Width, Height: o.Height}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("base value %.4f  output %.4f", e.BaseValue, e.Output[row]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "SHAP value", NameLocation: "middle", NameGap: 25}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	bar.SetXAxis(labels).
		AddSeries("shap", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right"}),
		)
	bar.XYReversal()
	return bar, nil
}

// ForcePlotPage は複数行の ForcePlot を1ページに並べる
func ForcePlotPage(e *shap.Explanation, rows []int, o ForceOptions) (*components.Page, error) {
	if len(rows) == 0 {
		return nil, errors.NewValueError("ForcePlotPage", "no rows to plot")
	}
	page := components.NewPage()
	page.PageTitle = "SHAP force plots"
	for _, r := range rows {
		ro := o
		if ro.Title == "" {
			ro.Title = fmt.Sprintf("row %d", r)
		} else {
			ro.Title = fmt.Sprintf("%s (row %d)", o.Title, r)
		}
		bar, err := ForcePlot(e, r, ro)
		if err != nil {
			return nil, err
		}
		page.AddCharts(bar)
	}
	return page, nil
}

// Renderer は go-echarts のグラフとページが満たす
type Renderer interface {
	Render(w io.Writer) error
}

// WriteHTML は r を path に HTML で書き出す
func WriteHTML(r Renderer, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	if err := r.Render(f); err != nil {
		return errors.Wrapf(err, "render %s", path)
	}
	log.GetLoggerWithName("plot").Info("html written",
		log.OperationKey, log.OperationRender,
		"path", path,
	)
	return nil
}
