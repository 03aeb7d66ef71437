package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/roadmetrics/trafficwatch/internal/db"
)

func renderSessions() []db.Session {
	base := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	return []db.Session{
		{SavedAt: base.Add(time.Hour), Cars: 8, Motorcycles: 1, Buses: 0, Trucks: 2, Total: 11},
		{SavedAt: base, Cars: 5, Motorcycles: 2, Buses: 1, Trucks: 1, Total: 9},
	}
}

func TestRenderSessionsChart(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSessionsChart(&buf, renderSessions()); err != nil {
		t.Fatalf("RenderSessionsChart: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"echarts", "Vehicles per session", "Cars", "Trucks"} {
		if !strings.Contains(html, want) {
			t.Errorf("chart HTML missing %q", want)
		}
	}
}

func TestRenderTotalsPlot(t *testing.T) {
	png, err := RenderTotalsPlot(renderSessions())
	if err != nil {
		t.Fatalf("RenderTotalsPlot: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("output is not a PNG (first bytes: %x)", png[:min(len(png), 8)])
	}
}

func TestRenderTotalsPlotEmpty(t *testing.T) {
	if _, err := RenderTotalsPlot(nil); err != nil {
		t.Fatalf("empty plot should render: %v", err)
	}
}
