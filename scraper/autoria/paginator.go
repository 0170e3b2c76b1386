package autoria

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"autoria-scraper/config"
	"autoria-scraper/models"
	"autoria-scraper/utils"
)

// Listing-page selectors, stable across the search result markup.
const (
	selTicketLink = "div.content-bar > a.m-link-ticket"
	selNextPage   = "a.js-next"
)

// FetchResult is one fetched listing page.
type FetchResult struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}

// PageFetcher retrieves a listing page over plain HTTP. A non-2xx status is
// an error, same as a transport failure.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*FetchResult, error)
}

// collyFetcher fetches with a throwaway collector per request, so retries
// never trip over colly's visited-URL bookkeeping.
type collyFetcher struct {
	timeout   time.Duration
	userAgent string
}

func newCollyFetcher(timeout time.Duration) *collyFetcher {
	return &collyFetcher{
		timeout:   timeout,
		userAgent: utils.RandomUserAgent(),
	}
}

func (f *collyFetcher) Fetch(ctx context.Context, pageURL string) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(f.timeout)

	res := &FetchResult{}
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		res.StatusCode = r.StatusCode
		res.Body = r.Body
		res.FinalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return res, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	if fetchErr != nil {
		return res, fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, fmt.Errorf("fetch %s: status %d", pageURL, res.StatusCode)
	}
	return res, nil
}

// Paginator walks the search results one page at a time: fetch a listing
// page with retry, pull out the ticket links and the next-page link.
type Paginator struct {
	fetcher PageFetcher
	retries int
	delay   time.Duration
	log     *zap.Logger
}

func NewPaginator(cfg *config.Config, log *zap.Logger) *Paginator {
	return &Paginator{
		fetcher: newCollyFetcher(cfg.RequestTimeout),
		retries: cfg.MaxRetries,
		delay:   cfg.RequestDelay,
		log:     log,
	}
}

// FetchPage returns the page cursor and the absolute detail-page URLs found
// on pageURL, in source order. A fetch that fails every retry attempt comes
// back as an error, so callers can tell a dead page from an empty one.
func (p *Paginator) FetchPage(ctx context.Context, pageURL string) (*models.PageCursor, []string, error) {
	var res *FetchResult
	err := utils.Retry(ctx, p.retries, p.delay, func() error {
		r, err := p.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			p.log.Warn("listing page fetch failed",
				zap.String("url", pageURL),
				zap.Error(err))
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch listing page: %w", err)
	}

	base := pageURL
	if res.FinalURL != "" {
		base = res.FinalURL
	}
	return parseListingPage(pageURL, base, res.Body)
}

func parseListingPage(pageURL, baseURL string, body []byte) (*models.PageCursor, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse listing page: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse page url %q: %w", baseURL, err)
	}

	var items []string
	doc.Find(selTicketLink).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if abs := resolveURL(base, href); abs != "" {
			items = append(items, abs)
		}
	})

	cursor := &models.PageCursor{URL: pageURL}
	if href, ok := doc.Find(selNextPage).First().Attr("href"); ok {
		cursor.NextURL = resolveURL(base, href)
	}
	return cursor, items, nil
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
