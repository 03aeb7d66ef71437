package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/roadmetrics/trafficwatch/internal/db"
)

// RenderSessionsChart writes an HTML bar chart of per-class counts across
// saved sessions to w. Sessions are plotted oldest first.
func RenderSessionsChart(w io.Writer, sessions []db.Session) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Traffic Sessions", Theme: "dark", Width: "1100px", Height: "550px"}),
		charts.WithTitleOpts(opts.Title{Title: "Vehicles per session", Subtitle: fmt.Sprintf("%d saved sessions", len(sessions))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	// Oldest first on the x axis.
	labels := make([]string, 0, len(sessions))
	cars := make([]opts.BarData, 0, len(sessions))
	motorcycles := make([]opts.BarData, 0, len(sessions))
	buses := make([]opts.BarData, 0, len(sessions))
	trucks := make([]opts.BarData, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		labels = append(labels, s.SavedAt.Format("01-02 15:04"))
		cars = append(cars, opts.BarData{Value: s.Cars})
		motorcycles = append(motorcycles, opts.BarData{Value: s.Motorcycles})
		buses = append(buses, opts.BarData{Value: s.Buses})
		trucks = append(trucks, opts.BarData{Value: s.Trucks})
	}

	bar.SetXAxis(labels).
		AddSeries("Cars", cars).
		AddSeries("Motorcycles", motorcycles).
		AddSeries("Buses", buses).
		AddSeries("Trucks", trucks)
	bar.SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))

	return bar.Render(w)
}
