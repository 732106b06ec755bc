package backtest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// WriteReport renders the equity curve to a standalone HTML page under
// dir and returns the file path.
func WriteReport(dir, backtestID string, result *Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "1200px",
			Height: "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s equity curve", result.Symbol),
			Subtitle: fmt.Sprintf("%s to %s | return %.2f%% | max drawdown %.2f%% | %d trades",
				result.StartDate, result.EndDate, result.TotalReturnPct, result.MaxDrawdownPct, result.TradeCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	dates := make([]string, 0, len(result.EquityCurve))
	values := make([]opts.LineData, 0, len(result.EquityCurve))
	for _, p := range result.EquityCurve {
		dates = append(dates, p.Date)
		values = append(values, opts.LineData{Value: round2(p.Value)})
	}
	line.SetXAxis(dates)
	line.AddSeries("Portfolio Value", values,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}),
	)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	path := filepath.Join(dir, fmt.Sprintf("backtest_%s.html", backtestID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return path, nil
}
