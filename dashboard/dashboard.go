// Package dashboard fetches and shapes the sales statistics shown on
// the terminal's revenue screen.
package dashboard

import (
	"context"
	"strconv"

	"github.com/vietpos/terminal/api"
	"github.com/vietpos/terminal/core"
)

// StatsFetcher fetches dashboard aggregates from the backend
type StatsFetcher interface {
	DashboardStats(ctx context.Context, rng api.TimeRange) (*api.DashboardStats, error)
}

// Series is a revenue-over-time line ready for charting, with one
// label per daily bucket.
type Series struct {
	Labels []string
	Values []int64
}

// Report is one dashboard snapshot for a time range
type Report struct {
	Range api.TimeRange
	Stats api.DashboardStats
}

// Dashboard loads revenue reports
type Dashboard struct {
	fetcher StatsFetcher
	logger  core.Logger
}

// New creates a dashboard backed by the given fetcher
func New(fetcher StatsFetcher, logger core.Logger) *Dashboard {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Dashboard{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Fetch loads the stats for the given range
func (d *Dashboard) Fetch(ctx context.Context, rng api.TimeRange) (*Report, error) {
	stats, err := d.fetcher.DashboardStats(ctx, rng)
	if err != nil {
		d.logger.Error("Failed to fetch dashboard stats", map[string]interface{}{
			"range": string(rng),
			"error": err.Error(),
		})
		return nil, err
	}

	d.logger.Info("Dashboard stats loaded", map[string]interface{}{
		"range":         string(rng),
		"total_orders":  stats.TotalOrders,
		"total_revenue": stats.TotalRevenue,
	})
	return &Report{Range: rng, Stats: *stats}, nil
}

// ChartSeries shapes the daily sales into a chartable line, keeping
// the backend's bucket order.
func (r *Report) ChartSeries() Series {
	s := Series{
		Labels: make([]string, 0, len(r.Stats.DailySales)),
		Values: make([]int64, 0, len(r.Stats.DailySales)),
	}
	for _, day := range r.Stats.DailySales {
		s.Labels = append(s.Labels, day.Date)
		s.Values = append(s.Values, day.Total)
	}
	return s
}

// FormatVND renders an amount the way Vietnamese tills print it,
// with dot thousand separators and a trailing currency sign.
func FormatVND(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var out []byte
	for i, c := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}

	s := string(out) + " ₫"
	if negative {
		return "-" + s
	}
	return s
}
