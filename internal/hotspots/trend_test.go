package hotspots

import (
	"math"
	"testing"
	"time"
)

var day0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func series(values ...float64) []Point {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{Time: day0.AddDate(0, 0, 10*i), Value: v}
	}
	return pts
}

func TestCalculateTrend(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		want   Direction
	}{
		{"increasing", series(100, 200, 300, 400), Increasing},
		{"decreasing", series(400, 300, 200, 100), Decreasing},
		{"stable", series(500, 501, 499, 500), Stable},
		{"single", series(42), Stable},
		{"empty", nil, Stable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := CalculateTrend(tt.points)
			if trend.Direction != tt.want {
				t.Errorf("Direction = %s, want %s (velocity %f)", trend.Direction, tt.want, trend.Velocity)
			}
			if trend.DataPoints != len(tt.points) {
				t.Errorf("DataPoints = %d", trend.DataPoints)
			}
		})
	}
}

func TestCalculateTrend_Values(t *testing.T) {
	// +100 every 10 days: 10 per day, perfect fit
	trend := CalculateTrend(series(100, 200, 300, 400))
	if math.Abs(trend.Velocity-10) > 1e-9 {
		t.Errorf("Velocity = %f, want 10", trend.Velocity)
	}
	if math.Abs(trend.Projection30d-700) > 1e-9 {
		t.Errorf("Projection30d = %f, want 700", trend.Projection30d)
	}
	if math.Abs(trend.RSquared-1) > 1e-9 {
		t.Errorf("RSquared = %f, want 1", trend.RSquared)
	}
	if trend.Mean != 250 {
		t.Errorf("Mean = %f", trend.Mean)
	}
}

func TestCalculateTrend_UnsortedAndClamped(t *testing.T) {
	pts := series(400, 300, 200, 10)
	pts[0], pts[3] = pts[3], pts[0]
	trend := CalculateTrend(pts)
	if trend.Direction != Decreasing {
		t.Errorf("Direction = %s", trend.Direction)
	}
	if trend.Projection30d != 0 {
		t.Errorf("projection should clamp at 0, got %f", trend.Projection30d)
	}
}

func TestCalculateTrend_SameTimestamp(t *testing.T) {
	pts := []Point{{Time: day0, Value: 1}, {Time: day0, Value: 9}}
	trend := CalculateTrend(pts)
	if trend.Direction != Stable || trend.Velocity != 0 || trend.Projection30d != 9 {
		t.Errorf("trend = %+v", trend)
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(series(10, 20, 15)); got != 50 {
		t.Errorf("PercentChange = %f, want 50", got)
	}
	if got := PercentChange(series(0, 20)); got != 0 {
		t.Errorf("zero base: %f", got)
	}
	if got := PercentChange(series(5)); got != 0 {
		t.Errorf("single point: %f", got)
	}
}

func BenchmarkCalculateTrend(b *testing.B) {
	pts := make([]Point, 30)
	for i := range pts {
		pts[i] = Point{Time: day0.AddDate(0, 0, i), Value: 500 + float64(i)*3}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CalculateTrend(pts)
	}
}
