package services

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"autoria-scraper/models"
)

const urlDisplayWidth = 60

// Report condenses one crawl run for display and logging.
type Report struct {
	RunID     string
	StartURL  string
	StartedAt time.Time
	Duration  time.Duration
	Stop      models.StopReason
	Pages     []models.PageStats

	Found     int
	Attempted int
	Saved     int
	Skipped   int
	Failed    int
}

// BuildReport aggregates the per-page statistics of a finished run.
func BuildReport(stats *models.RunStats) Report {
	totals := stats.Totals()
	return Report{
		RunID:     stats.RunID,
		StartURL:  stats.StartURL,
		StartedAt: stats.StartedAt,
		Duration:  stats.Duration(),
		Stop:      stats.Stop,
		Pages:     stats.Pages,
		Found:     stats.TotalFound(),
		Attempted: totals.Attempted,
		Saved:     totals.Saved,
		Skipped:   totals.Skipped,
		Failed:    totals.Failed,
	}
}

// RenderReport lays the report out as a page-by-page table with a totals
// footer, followed by a one-line run summary.
func RenderReport(r Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Crawl %s", r.RunID)
	t.AppendHeader(table.Row{"Page", "URL", "Found", "Attempted", "Saved", "Skipped", "Failed"})

	for _, p := range r.Pages {
		t.AppendRow(table.Row{
			p.Index,
			truncateText(p.URL, urlDisplayWidth),
			p.Found,
			p.Attempted,
			p.Saved,
			p.Skipped,
			p.Failed,
		})
	}
	t.AppendFooter(table.Row{
		"", "Total", r.Found, r.Attempted, r.Saved, r.Skipped, r.Failed,
	})

	summary := fmt.Sprintf("stop=%s pages=%d took=%s",
		r.Stop, len(r.Pages), r.Duration.Round(time.Millisecond))
	return t.Render() + "\n" + summary
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
