package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"autoria-scraper/config"
)

// Job is a unit of scheduled work. Jobs receive the scheduler's context and
// are expected to stop early when it is cancelled.
type Job func(ctx context.Context)

// Scheduler runs the daily scrape and database-dump jobs at their
// configured wall-clock times, in the configured timezone.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	loc  *time.Location

	scrape     Job
	dump       Job
	scrapeAt   string
	dumpAt     string
	scrapeSpec string
	dumpSpec   string
}

func NewScheduler(cfg *config.Config, log *zap.Logger, scrape, dump Job) (*Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	scrapeSpec, err := cronSpec(cfg.ScrapeTime)
	if err != nil {
		return nil, fmt.Errorf("SCRAPE_SCHEDULE_TIME: %w", err)
	}
	dumpSpec, err := cronSpec(cfg.DumpTime)
	if err != nil {
		return nil, fmt.Errorf("DUMP_SCHEDULE_TIME: %w", err)
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		log:        log,
		loc:        loc,
		scrape:     scrape,
		dump:       dump,
		scrapeAt:   cfg.ScrapeTime,
		dumpAt:     cfg.DumpTime,
		scrapeSpec: scrapeSpec,
		dumpSpec:   dumpSpec,
	}, nil
}

// Run blocks until ctx is cancelled, firing the jobs on their schedules.
// When runNow is set, or today's scrape slot has already passed at startup,
// one scrape runs immediately so a late-started process still covers the
// day.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	if _, err := s.cron.AddFunc(s.scrapeSpec, func() {
		s.log.Info("scheduled scrape starting")
		s.scrape(ctx)
	}); err != nil {
		return fmt.Errorf("schedule scrape: %w", err)
	}
	if _, err := s.cron.AddFunc(s.dumpSpec, func() {
		s.log.Info("scheduled dump starting")
		s.dump(ctx)
	}); err != nil {
		return fmt.Errorf("schedule dump: %w", err)
	}

	if runNow || pastToday(time.Now().In(s.loc), s.scrapeAt) {
		s.log.Info("running initial scrape", zap.Bool("forced", runNow))
		s.scrape(ctx)
	}

	s.cron.Start()
	s.log.Info("scheduler running",
		zap.String("scrape_at", s.scrapeAt),
		zap.String("dump_at", s.dumpAt),
		zap.String("timezone", s.loc.String()))

	<-ctx.Done()

	s.log.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	return nil
}

// cronSpec converts a daily "HH:MM" wall-clock time into a cron expression.
func cronSpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("schedule time %q is not HH:MM: %w", hhmm, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// pastToday reports whether now is already past today's hh:mm slot.
func pastToday(now time.Time, hhmm string) bool {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return false
	}
	slot := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	return now.After(slot)
}
