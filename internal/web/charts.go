package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
)

// maxChartLabels limits the bars of the history chart.
const maxChartLabels = 20

// HandleHistoryChart renders a bar chart (HTML) of how often each top label was seen.
func (h *Handlers) HandleHistoryChart(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	counts, err := h.History.LabelCounts(r.Context())
	if err != nil {
		debug.Error(err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if len(counts) > maxChartLabels {
		counts = counts[:maxChartLabels]
	}

	x := make([]string, 0, len(counts))
	y := make([]opts.BarData, 0, len(counts))
	total := 0
	for _, c := range counts {
		x = append(x, c.Label)
		y = append(y, opts.BarData{Value: c.Count})
		total += c.Count
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Classification history", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Top labels", Subtitle: fmt.Sprintf("%d classified photos", total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("photos", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
