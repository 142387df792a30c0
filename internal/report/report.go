// Package report 将对局转录渲染为可在浏览器中查看的 HTML 图表。
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"ZKPong/internal/transcript"
)

type options struct {
	title string
}

// Option 调整报告的展示参数。
type Option func(*options)

// WithTitle 设置页面标题。
func WithTitle(title string) Option {
	return func(o *options) {
		if title != "" {
			o.title = title
		}
	}
}

// Render 写出包含球轨迹、挡板位置与比分曲线的 HTML 页面。
func Render(w io.Writer, entries []transcript.Entry, opts ...Option) error {
	if len(entries) == 0 {
		return errors.New("report: transcript is empty")
	}
	o := options{title: "ZKPong transcript"}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	final := entries[len(entries)-1]
	subtitle := fmt.Sprintf("%d ticks, score %d:%d", final.GameTick, final.LeftPaddleScore, final.RightPaddleScore)

	page := components.NewPage().SetPageTitle(o.title)
	page.AddCharts(
		trajectoryChart(o.title, subtitle, entries),
		paddleChart(entries),
		scoreChart(entries),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("report: render page: %w", err)
	}
	return nil
}

func trajectoryChart(title, subtitle string, entries []transcript.Entry) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "ball x", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ball y", Type: "value"}),
	)
	items := make([]opts.ScatterData, 0, len(entries))
	for _, e := range entries {
		items = append(items, opts.ScatterData{Value: []int{e.BallX, e.BallY, e.GameTick}})
	}
	sc.AddSeries("ball", items,
		charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "circle", SymbolSize: 6}),
	)
	return sc
}

func paddleChart(entries []transcript.Entry) *charts.Line {
	line := newTickLine("Paddle positions", "paddle y")
	left := make([]opts.LineData, 0, len(entries))
	right := make([]opts.LineData, 0, len(entries))
	for _, e := range entries {
		left = append(left, opts.LineData{Value: e.LeftPaddleY})
		right = append(right, opts.LineData{Value: e.RightPaddleY})
	}
	line.SetXAxis(ticks(entries)).
		AddSeries("left", left).
		AddSeries("right", right)
	return line
}

func scoreChart(entries []transcript.Entry) *charts.Line {
	line := newTickLine("Score", "points")
	left := make([]opts.LineData, 0, len(entries))
	right := make([]opts.LineData, 0, len(entries))
	for _, e := range entries {
		left = append(left, opts.LineData{Value: e.LeftPaddleScore})
		right = append(right, opts.LineData{Value: e.RightPaddleScore})
	}
	line.SetXAxis(ticks(entries)).
		AddSeries("left", left).
		AddSeries("right", right)
	return line
}

func newTickLine(title, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)
	return line
}

func ticks(entries []transcript.Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.GameTick
	}
	return out
}
