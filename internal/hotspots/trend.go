// Package hotspots computes trends over series of trace summaries.
package hotspots

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Direction is the sign of a trend.
type Direction string

const (
	Increasing Direction = "increasing"
	Stable     Direction = "stable"
	Decreasing Direction = "decreasing"
)

// StableThreshold is the daily change, relative to the series mean, below
// which a trend counts as stable.
const StableThreshold = 0.01

// Point is one observation of a metric.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Trend represents the trend analysis for a metric.
type Trend struct {
	Direction     Direction `json:"direction"`
	Velocity      float64   `json:"velocity"`      // change per day
	Projection30d float64   `json:"projection30d"` // predicted value in 30 days
	RSquared      float64   `json:"rSquared"`      // fit quality, 0..1
	DataPoints    int       `json:"dataPoints"`
	Mean          float64   `json:"mean"`
}

// CalculateTrend fits a least-squares line through points, oldest first
// after sorting. Fewer than two points, or points that all share one
// timestamp, give a stable trend.
func CalculateTrend(points []Point) *Trend {
	trend := &Trend{Direction: Stable, DataPoints: len(points)}
	if len(points) == 0 {
		return trend
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	base := sorted[0].Time
	for i, p := range sorted {
		xs[i] = p.Time.Sub(base).Hours() / 24 // days since first point
		ys[i] = p.Value
	}
	trend.Mean = stat.Mean(ys, nil)
	latest := ys[len(ys)-1]
	trend.Projection30d = latest

	if len(sorted) < 2 || xs[len(xs)-1] == 0 {
		return trend
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return trend
	}
	trend.Velocity = beta
	if r2 := stat.RSquared(xs, ys, nil, alpha, beta); !math.IsNaN(r2) {
		trend.RSquared = r2
	}

	scale := math.Max(math.Abs(trend.Mean), 1)
	switch {
	case beta > StableThreshold*scale:
		trend.Direction = Increasing
	case beta < -StableThreshold*scale:
		trend.Direction = Decreasing
	}

	trend.Projection30d = math.Max(latest+beta*30, 0)
	return trend
}

// PercentChange returns the relative change from the first to the last
// point in percent, or 0 when the first value is 0.
func PercentChange(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	first, last := points[0], points[len(points)-1]
	for _, p := range points {
		if p.Time.Before(first.Time) {
			first = p
		}
		if !p.Time.Before(last.Time) {
			last = p
		}
	}
	if first.Value == 0 {
		return 0
	}
	return (last.Value - first.Value) / first.Value * 100
}
