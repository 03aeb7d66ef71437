package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/roadmetrics/trafficwatch/internal/db"
)

// Summary aggregates saved sessions into headline statistics.
type Summary struct {
	Sessions         int     `json:"sessions"`
	TotalVehicles    int     `json:"total_vehicles"`
	MeanPerSession   float64 `json:"mean_per_session"`
	MedianPerSession float64 `json:"median_per_session"`
	P95PerSession    float64 `json:"p95_per_session"`
	Cars             int     `json:"cars"`
	Motorcycles      int     `json:"motorcycles"`
	Buses            int     `json:"buses"`
	Trucks           int     `json:"trucks"`
}

// Summarize computes summary statistics over the given sessions. An empty
// input yields a zero Summary.
func Summarize(sessions []db.Session) Summary {
	sum := Summary{Sessions: len(sessions)}
	if len(sessions) == 0 {
		return sum
	}

	totals := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		totals = append(totals, float64(s.Total))
		sum.TotalVehicles += s.Total
		sum.Cars += s.Cars
		sum.Motorcycles += s.Motorcycles
		sum.Buses += s.Buses
		sum.Trucks += s.Trucks
	}

	sum.MeanPerSession = stat.Mean(totals, nil)

	// Quantile requires ascending input.
	sort.Float64s(totals)
	sum.MedianPerSession = stat.Quantile(0.5, stat.Empirical, totals, nil)
	sum.P95PerSession = stat.Quantile(0.95, stat.Empirical, totals, nil)
	return sum
}
