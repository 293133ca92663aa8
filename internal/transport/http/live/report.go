package livehttp

import (
	"fmt"
	"net/http"
	"strconv"

	"mako/internal/logger"
	"mako/internal/store/gormstore"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorProfit        = "#34d399"
	colorLoss          = "#f87171"
	colorEquity        = "#3b82f6"

	chartWidthPx  = 1100
	chartHeightPx = 420
)

// handleReport renders an HTML page with the daily P&L and cumulative
// performance charts for the requested window (default 30 days).
func (r *Router) handleReport(c *gin.Context) {
	if r.Trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade journal unavailable"})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	series, err := r.Trades.DailyPnLSeries(days)
	if err != nil {
		logger.Errorf("[api] report query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildDailyPnLBar(series), buildCumulativeLine(series))

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := page.Render(c.Writer); err != nil {
		logger.Errorf("[api] report render failed ip=%s err=%v", c.ClientIP(), err)
	}
}

func chartInit(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func buildDailyPnLBar(series []gormstore.DailyPnL) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(chartInit(chartHeightPx)),
		charts.WithTitleOpts(opts.Title{
			Title:         "Daily realized P&L",
			Subtitle:      fmt.Sprintf("%d trading days", len(series)),
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	days := make([]string, 0, len(series))
	values := make([]opts.BarData, 0, len(series))
	for _, d := range series {
		days = append(days, d.Day)
		color := colorProfit
		if d.PnL < 0 {
			color = colorLoss
		}
		values = append(values, opts.BarData{
			Value:     d.PnL,
			ItemStyle: &opts.ItemStyle{Color: color},
		})
	}
	bar.SetXAxis(days).AddSeries("pnl", values)
	return bar
}

func buildCumulativeLine(series []gormstore.DailyPnL) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(chartInit(chartHeightPx)),
		charts.WithTitleOpts(opts.Title{
			Title:      "Cumulative P&L",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	days := make([]string, 0, len(series))
	values := make([]opts.LineData, 0, len(series))
	var cum float64
	for _, d := range series {
		cum += d.PnL
		days = append(days, d.Day)
		values = append(values, opts.LineData{Value: cum})
	}
	line.SetXAxis(days).AddSeries("cumulative", values,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorEquity, Opacity: opts.Float(0.12)}),
	)
	return line
}
