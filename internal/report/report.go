// Package report renders walkthrough output as go-pretty tables.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/YuminosukeSato/censusml/dataframe"
	"github.com/YuminosukeSato/censusml/explain/shap"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Metric is one named value in a PrintMetrics table.
type Metric struct {
	Name  string
	Value float64
}

// newTable writes title on its own line. go-pretty wraps a title to the
// table width, which breaks long titles over narrow tables.
func newTable(w io.Writer, title string) table.Writer {
	if title != "" {
		_, _ = fmt.Fprintln(w, title)
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// PrintShape writes "label: rows x cols".
func PrintShape(w io.Writer, label string, rows, cols int) {
	_, _ = fmt.Fprintf(w, "%s: %d rows x %d columns\n", label, rows, cols)
}

// PrintFrame renders the frame with a kind row under the header.
// Missing values print as "NaN".
func PrintFrame(w io.Writer, title string, f *dataframe.Frame) {
	records := f.Records()
	if f.Rows() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := newTable(w, title)
	header := make(table.Row, len(records[0]))
	for i, name := range records[0] {
		header[i] = name
	}
	t.AppendHeader(header)

	kinds := make(table.Row, len(records[0]))
	for i, k := range f.Kinds() {
		kinds[i] = k.String()
	}
	t.AppendRow(kinds)
	t.AppendSeparator()

	for _, rec := range records[1:] {
		row := make(table.Row, len(rec))
		for i, v := range rec {
			if v == "" {
				v = "NaN"
			}
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", f.Rows())
}

// PrintSummary renders Describe output, one row per column.
func PrintSummary(w io.Writer, summaries []dataframe.ColumnSummary) {
	t := newTable(w, "summary")
	t.AppendHeader(table.Row{"column", "kind", "count", "missing", "mean", "std", "min", "25%", "50%", "75%", "max", "distinct"})
	for _, s := range summaries {
		if s.Kind == dataframe.KindCategory {
			t.AppendRow(table.Row{s.Name, s.Kind.String(), s.Count, s.Missing, "", "", "", "", "", "", "", s.Distinct})
			continue
		}
		t.AppendRow(table.Row{
			s.Name, s.Kind.String(), s.Count, s.Missing,
			formatFloat(s.Mean), formatFloat(s.Std), formatFloat(s.Min),
			formatFloat(s.Q25), formatFloat(s.Median), formatFloat(s.Q75), formatFloat(s.Max),
			"",
		})
	}
	t.Render()
}

// PrintMetrics renders name/value pairs in the given order.
func PrintMetrics(w io.Writer, title string, metrics []Metric) {
	t := newTable(w, title)
	t.AppendHeader(table.Row{"metric", "value"})
	for _, m := range metrics {
		t.AppendRow(table.Row{m.Name, formatFloat(m.Value)})
	}
	t.Render()
}

// PrintExplanation renders one row per explained sample: the SHAP value of
// every feature, then base, sum and model output. The footer reports the
// largest additivity gap.
func PrintExplanation(w io.Writer, title string, e *shap.Explanation) {
	t := newTable(w, title)

	header := table.Row{"row"}
	for _, name := range e.FeatureNames {
		header = append(header, name)
	}
	header = append(header, "base", "sum(shap)+base", "output")
	t.AppendHeader(header)

	for i := 0; i < e.Rows(); i++ {
		row := table.Row{i}
		sum := e.BaseValue
		for _, v := range e.Row(i) {
			row = append(row, formatFloat(v))
			sum += v
		}
		row = append(row, formatFloat(e.BaseValue), formatFloat(sum), formatFloat(e.Output[i]))
		t.AppendRow(row)
	}

	footer := make(table.Row, len(header))
	for i := range footer {
		footer[i] = ""
	}
	footer[0] = "max |gap|"
	footer[len(footer)-1] = strconv.FormatFloat(e.MaxAdditivityGap(), 'e', 2, 64)
	t.AppendFooter(footer)
	t.Render()
}

// PrintContributions renders the features of one row sorted by |SHAP|.
func PrintContributions(w io.Writer, e *shap.Explanation, row, limit int) {
	t := newTable(w, fmt.Sprintf("row %d: base %.4f -> output %.4f", row, e.BaseValue, e.Output[row]))
	t.AppendHeader(table.Row{"feature", "value", "shap"})
	for i, c := range e.Contributions(row) {
		if limit > 0 && i >= limit {
			break
		}
		t.AppendRow(table.Row{c.Feature, formatFloat(c.Value), formatFloat(c.SHAP)})
	}
	t.Render()
}
