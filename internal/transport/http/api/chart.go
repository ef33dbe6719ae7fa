package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"updown/internal/store"
)

const chartLimit = 200

// handleChart 渲染 edge_prob 与 size_usd 的时间序列（echarts HTML）。
func (r *Router) handleChart(c *gin.Context) {
	recs, err := r.svc.History(c.Request.Context(), store.Filter{Symbol: c.Query("symbol"), Limit: chartLimit})
	if err != nil {
		writeError(c, err)
		return
	}
	line := buildChart(c.Query("symbol"), recs)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// buildChart 记录按时间倒序返回，画图前翻转为正序。
func buildChart(symbol string, recs []store.PredictionRecord) *charts.Line {
	n := len(recs)
	xAxis := make([]string, 0, n)
	edge := make([]opts.LineData, 0, n)
	size := make([]opts.LineData, 0, n)
	for i := n - 1; i >= 0; i-- {
		rec := recs[i]
		xAxis = append(xAxis, rec.Timestamp.UTC().Format("01-02 15:04"))
		edge = append(edge, opts.LineData{Value: rec.EdgeProb, Name: rec.Direction})
		size = append(size, opts.LineData{Value: rec.SizeUSD, Name: rec.Direction})
	}
	title := "Predictions"
	if symbol != "" {
		title += " " + symbol
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1100px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "edge_prob / size_usd"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "edge_prob", Min: 0, Max: 1}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "size_usd", Scale: opts.Bool(true)})
	line.SetXAxis(xAxis).
		AddSeries("edge_prob", edge, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)})).
		AddSeries("size_usd", size, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ShowSymbol: opts.Bool(true)}))
	return line
}
