package autoria

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autoria-scraper/config"
	"autoria-scraper/models"
	"autoria-scraper/utils"
)

// crawlState is where the run currently is in its page loop.
type crawlState int

const (
	stateIdle crawlState = iota
	stateFetching
	stateProcessing
	stateAdvancing
	stateDone
)

// pageLister yields one listing page's item URLs plus its cursor.
type pageLister interface {
	FetchPage(ctx context.Context, pageURL string) (*models.PageCursor, []string, error)
}

// batchRunner processes one page's item URLs and reports the counts.
type batchRunner interface {
	Process(ctx context.Context, urls []string) models.BatchStats
}

// Scraper drives a crawl: pages strictly in order, details fanned out per
// page. All collaborators are passed in; nothing global.
type Scraper struct {
	cfg   *config.Config
	store CarSaver
	log   *zap.Logger
	pages pageLister
}

func NewScraper(cfg *config.Config, store CarSaver, log *zap.Logger) *Scraper {
	return &Scraper{
		cfg:   cfg,
		store: store,
		log:   log,
		pages: NewPaginator(cfg, log),
	}
}

// Run performs one crawl from the configured start URL. Browser sessions
// and the seen-URL filter live exactly as long as the call, so Run can be
// invoked again for the next scheduled crawl. The returned error covers
// startup failures only; crawl-time trouble is absorbed into the stats.
func (s *Scraper) Run(ctx context.Context) (*models.RunStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool, err := NewSessionPool(s.cfg, s.log)
	if err != nil {
		return nil, fmt.Errorf("start rendering sessions: %w", err)
	}
	defer pool.Close()

	fetch := &pooledExtractor{
		sessions: pool,
		extract:  NewExtractor(s.cfg, s.log),
	}
	batch := NewBatchProcessor(s.cfg.Concurrency, fetch, s.store, s.log)

	return s.crawl(ctx, s.pages, batch), nil
}

// crawl is the page loop: Idle -> Fetching -> Processing -> Advancing,
// around again while there is a next page, then Done. Split from Run so the
// loop can be driven with fakes.
func (s *Scraper) crawl(ctx context.Context, pages pageLister, batch batchRunner) *models.RunStats {
	stats := &models.RunStats{
		RunID:     uuid.NewString(),
		StartURL:  s.cfg.StartURL,
		StartedAt: time.Now(),
	}

	log := s.log.With(zap.String("run_id", stats.RunID))
	log.Info("crawl starting", zap.String("start_url", stats.StartURL))

	var (
		st      = stateIdle
		cursor  *models.PageCursor
		items   []string
		pageURL = s.cfg.StartURL
		pageNum int
	)

	for st != stateDone {
		if ctx.Err() != nil {
			stats.Stop = models.StopCancelled
			break
		}

		switch st {
		case stateIdle:
			st = stateFetching

		case stateFetching:
			pageNum++
			var err error
			cursor, items, err = pages.FetchPage(ctx, pageURL)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					stats.Stop = models.StopCancelled
				} else {
					log.Warn("listing page unavailable",
						zap.Int("page", pageNum),
						zap.String("url", pageURL),
						zap.Error(err))
					stats.Stop = models.StopPageFetchFailed
				}
				st = stateDone
			case len(items) == 0:
				log.Info("no listings found",
					zap.Int("page", pageNum),
					zap.String("url", pageURL))
				stats.Stop = models.StopNoListings
				st = stateDone
			default:
				cursor.Index = pageNum
				log.Info("listing page fetched",
					zap.Int("page", pageNum),
					zap.Int("found", len(items)))
				st = stateProcessing
			}

		case stateProcessing:
			bs := batch.Process(ctx, items)
			stats.Pages = append(stats.Pages, models.PageStats{
				Index:      pageNum,
				URL:        cursor.URL,
				Found:      len(items),
				BatchStats: bs,
			})
			log.Info("page processed",
				zap.Int("page", pageNum),
				zap.Int("attempted", bs.Attempted),
				zap.Int("saved", bs.Saved),
				zap.Int("skipped", bs.Skipped),
				zap.Int("failed", bs.Failed))
			st = stateAdvancing

		case stateAdvancing:
			if cursor.NextURL == "" {
				stats.Stop = models.StopLastPage
				st = stateDone
				break
			}
			if err := utils.Sleep(ctx, s.cfg.RequestDelay); err != nil {
				stats.Stop = models.StopCancelled
				st = stateDone
				break
			}
			pageURL = cursor.NextURL
			st = stateFetching
		}
	}

	stats.FinishedAt = time.Now()
	totals := stats.Totals()
	log.Info("crawl finished",
		zap.String("stop", string(stats.Stop)),
		zap.Int("pages", len(stats.Pages)),
		zap.Int("found", stats.TotalFound()),
		zap.Int("saved", totals.Saved),
		zap.Int("skipped", totals.Skipped),
		zap.Int("failed", totals.Failed),
		zap.Duration("took", stats.Duration()))
	return stats
}
