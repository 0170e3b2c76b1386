package autoria

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autoria-scraper/config"
	"autoria-scraper/models"
)

type listerFunc func(ctx context.Context, pageURL string) (*models.PageCursor, []string, error)

func (f listerFunc) FetchPage(ctx context.Context, pageURL string) (*models.PageCursor, []string, error) {
	return f(ctx, pageURL)
}

type batchFunc func(ctx context.Context, urls []string) models.BatchStats

func (f batchFunc) Process(ctx context.Context, urls []string) models.BatchStats {
	return f(ctx, urls)
}

func newTestScraper(startURL string) *Scraper {
	return &Scraper{
		cfg: &config.Config{StartURL: startURL, RequestDelay: 0},
		log: zap.NewNop(),
	}
}

func searchURL(page int) string {
	return urlFor(1000 + page)
}

func TestCrawlWalksAllPages(t *testing.T) {
	t.Parallel()

	pageItems := map[string][]string{
		searchURL(1): {urlFor(1), urlFor(2)},
		searchURL(2): {urlFor(3)},
		searchURL(3): {urlFor(4), urlFor(5), urlFor(6)},
	}
	next := map[string]string{
		searchURL(1): searchURL(2),
		searchURL(2): searchURL(3),
	}

	var fetched []string
	pages := listerFunc(func(_ context.Context, pageURL string) (*models.PageCursor, []string, error) {
		fetched = append(fetched, pageURL)
		return &models.PageCursor{URL: pageURL, NextURL: next[pageURL]}, pageItems[pageURL], nil
	})

	var processed [][]string
	batch := batchFunc(func(_ context.Context, urls []string) models.BatchStats {
		processed = append(processed, urls)
		return models.BatchStats{Attempted: len(urls), Saved: len(urls)}
	})

	s := newTestScraper(searchURL(1))
	stats := s.crawl(context.Background(), pages, batch)

	assert.Equal(t, []string{searchURL(1), searchURL(2), searchURL(3)}, fetched,
		"pages are walked strictly in order")
	require.Len(t, processed, 3)
	assert.Equal(t, pageItems[searchURL(2)], processed[1])

	assert.Equal(t, models.StopLastPage, stats.Stop)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, searchURL(1), stats.StartURL)
	require.Len(t, stats.Pages, 3)
	assert.Equal(t, 1, stats.Pages[0].Index)
	assert.Equal(t, 3, stats.Pages[2].Index)
	assert.Equal(t, 6, stats.TotalFound())
	assert.Equal(t, 6, stats.Totals().Saved)
	assert.False(t, stats.FinishedAt.Before(stats.StartedAt))
}

func TestCrawlSinglePage(t *testing.T) {
	t.Parallel()

	var calls int
	pages := listerFunc(func(_ context.Context, pageURL string) (*models.PageCursor, []string, error) {
		calls++
		return &models.PageCursor{URL: pageURL}, []string{urlFor(1)}, nil
	})
	batch := batchFunc(func(_ context.Context, urls []string) models.BatchStats {
		return models.BatchStats{Attempted: len(urls), Saved: len(urls)}
	})

	stats := newTestScraper(searchURL(1)).crawl(context.Background(), pages, batch)

	assert.Equal(t, 1, calls, "no next link means no further fetches")
	assert.Equal(t, models.StopLastPage, stats.Stop)
	assert.Len(t, stats.Pages, 1)
}

func TestCrawlStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	pages := listerFunc(func(_ context.Context, pageURL string) (*models.PageCursor, []string, error) {
		return &models.PageCursor{URL: pageURL, NextURL: searchURL(2)}, nil, nil
	})
	batch := batchFunc(func(_ context.Context, urls []string) models.BatchStats {
		t.Fatal("an empty page must not reach the batch processor")
		return models.BatchStats{}
	})

	stats := newTestScraper(searchURL(1)).crawl(context.Background(), pages, batch)

	assert.Equal(t, models.StopNoListings, stats.Stop)
	assert.Empty(t, stats.Pages)
}

func TestCrawlStopsOnPageFetchFailure(t *testing.T) {
	t.Parallel()

	pages := listerFunc(func(_ context.Context, pageURL string) (*models.PageCursor, []string, error) {
		if pageURL == searchURL(2) {
			return nil, nil, errors.New("fetch listing page: all 3 attempts failed")
		}
		return &models.PageCursor{URL: pageURL, NextURL: searchURL(2)}, []string{urlFor(1)}, nil
	})
	batch := batchFunc(func(_ context.Context, urls []string) models.BatchStats {
		return models.BatchStats{Attempted: len(urls), Saved: len(urls)}
	})

	stats := newTestScraper(searchURL(1)).crawl(context.Background(), pages, batch)

	assert.Equal(t, models.StopPageFetchFailed, stats.Stop)
	require.Len(t, stats.Pages, 1, "the first page's results survive the second page's failure")
	assert.Equal(t, 1, stats.Totals().Saved)
}

func TestCrawlCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages := listerFunc(func(context.Context, string) (*models.PageCursor, []string, error) {
		t.Fatal("no page fetch after cancellation")
		return nil, nil, nil
	})
	batch := batchFunc(func(context.Context, []string) models.BatchStats {
		return models.BatchStats{}
	})

	stats := newTestScraper(searchURL(1)).crawl(ctx, pages, batch)

	assert.Equal(t, models.StopCancelled, stats.Stop)
	assert.Empty(t, stats.Pages)
}

func TestCrawlCancelledMidRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	pages := listerFunc(func(_ context.Context, pageURL string) (*models.PageCursor, []string, error) {
		return &models.PageCursor{URL: pageURL, NextURL: searchURL(99)}, []string{urlFor(1)}, nil
	})
	batch := batchFunc(func(_ context.Context, urls []string) models.BatchStats {
		cancel() // the run is interrupted while a page is being processed
		return models.BatchStats{Attempted: len(urls), Saved: len(urls)}
	})

	stats := newTestScraper(searchURL(1)).crawl(ctx, pages, batch)

	assert.Equal(t, models.StopCancelled, stats.Stop)
	require.Len(t, stats.Pages, 1, "work finished before the cancellation is kept")
	assert.Equal(t, 1, stats.Totals().Saved)
}
