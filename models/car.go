package models

import "time"

// Car is one crawled listing. URL is the identity key; every other field
// falls back to its zero value when the page does not expose it.
type Car struct {
	ID          int64
	URL         string
	Title       string
	PriceUSD    int
	OdometerKm  int
	SellerName  string
	PhoneNumber int64
	ImageURL    string
	ImagesCount int
	PlateNumber string
	VIN         string
	FoundAt     time.Time
}

// PageCursor tracks the listing page currently being walked.
// It lives for one page fetch and is rebuilt for the next page.
type PageCursor struct {
	URL     string
	Index   int
	NextURL string
}

type Outcome string

const (
	OutcomeSaved   Outcome = "saved"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type TaskResult struct {
	URL     string
	Outcome Outcome
	Err     error
}

type BatchStats struct {
	Attempted int
	Saved     int
	Skipped   int
	Failed    int
}

func (s *BatchStats) Add(o Outcome) {
	s.Attempted++
	switch o {
	case OutcomeSaved:
		s.Saved++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

type PageStats struct {
	Index int
	URL   string
	Found int
	BatchStats
}

// StopReason records why a crawl run ended.
type StopReason string

const (
	StopLastPage        StopReason = "last_page"
	StopNoListings      StopReason = "no_listings"
	StopPageFetchFailed StopReason = "page_fetch_failed"
	StopCancelled       StopReason = "cancelled"
)

type RunStats struct {
	RunID      string
	StartURL   string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      []PageStats
	Stop       StopReason
}

func (r *RunStats) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunStats) TotalFound() int {
	n := 0
	for _, p := range r.Pages {
		n += p.Found
	}
	return n
}

func (r *RunStats) Totals() BatchStats {
	var t BatchStats
	for _, p := range r.Pages {
		t.Attempted += p.Attempted
		t.Saved += p.Saved
		t.Skipped += p.Skipped
		t.Failed += p.Failed
	}
	return t
}
