package autoria

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"autoria-scraper/models"
)

// CarSaver is the slice of the store the batch processor needs: insert a
// car, report whether a new row was created.
type CarSaver interface {
	Save(ctx context.Context, car *models.Car) (bool, error)
}

// carFetcher produces a Car from a detail-page URL.
type carFetcher interface {
	FetchCar(ctx context.Context, carURL string) (*models.Car, error)
}

// pooledExtractor runs the extractor on a session leased for the duration
// of one detail-page task.
type pooledExtractor struct {
	sessions *SessionPool
	extract  *Extractor
}

func (f *pooledExtractor) FetchCar(ctx context.Context, carURL string) (*models.Car, error) {
	sess, err := f.sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}

	car, err := f.extract.Extract(ctx, sess, carURL)
	if err != nil {
		// The tab may be stuck on whatever broke the load.
		f.sessions.Discard(sess)
		return nil, err
	}
	f.sessions.Release(sess)
	return car, nil
}

// BatchProcessor fans one page's detail URLs out to a bounded pool of
// workers. Each unit of work claims the URL, extracts and persists; a
// failure stays contained to its own URL and only shows up in the counts.
type BatchProcessor struct {
	workers int
	fetch   carFetcher
	store   CarSaver
	seen    *SeenFilter
	log     *zap.Logger
}

func NewBatchProcessor(workers int, fetch carFetcher, store CarSaver, log *zap.Logger) *BatchProcessor {
	return &BatchProcessor{
		workers: workers,
		fetch:   fetch,
		store:   store,
		seen:    NewSeenFilter(),
		log:     log,
	}
}

// Process works through one page's URLs and returns the aggregate outcome
// counts. On cancellation the remaining URLs are abandoned uncounted;
// whatever was already persisted stays persisted.
func (b *BatchProcessor) Process(ctx context.Context, urls []string) models.BatchStats {
	var stats models.BatchStats
	if len(urls) == 0 {
		return stats
	}

	jobs := make(chan string, len(urls))
	results := make(chan models.TaskResult, len(urls))

	workers := min(b.workers, len(urls))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 1; i <= workers; i++ {
		go b.worker(ctx, i, jobs, results, &wg)
	}

	for _, u := range urls {
		jobs <- u
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		stats.Add(res.Outcome)
		switch res.Outcome {
		case models.OutcomeFailed:
			b.log.Warn("car failed", zap.String("url", res.URL), zap.Error(res.Err))
		case models.OutcomeSkipped:
			b.log.Debug("car skipped", zap.String("url", res.URL))
		case models.OutcomeSaved:
			b.log.Debug("car saved", zap.String("url", res.URL))
		}
	}
	return stats
}

func (b *BatchProcessor) worker(ctx context.Context, id int, jobs <-chan string, results chan<- models.TaskResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for carURL := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- b.processOne(ctx, carURL)
	}
}

func (b *BatchProcessor) processOne(ctx context.Context, carURL string) models.TaskResult {
	if !b.seen.Claim(carURL) {
		return models.TaskResult{URL: carURL, Outcome: models.OutcomeSkipped}
	}

	car, err := b.fetch.FetchCar(ctx, carURL)
	if err != nil {
		return models.TaskResult{
			URL:     carURL,
			Outcome: models.OutcomeFailed,
			Err:     fmt.Errorf("extract: %w", err),
		}
	}

	inserted, err := b.store.Save(ctx, car)
	if err != nil {
		return models.TaskResult{
			URL:     carURL,
			Outcome: models.OutcomeFailed,
			Err:     fmt.Errorf("save: %w", err),
		}
	}
	if !inserted {
		// Some earlier run already has this car.
		return models.TaskResult{URL: carURL, Outcome: models.OutcomeSkipped}
	}
	return models.TaskResult{URL: carURL, Outcome: models.OutcomeSaved}
}
