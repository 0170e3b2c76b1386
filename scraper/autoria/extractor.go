package autoria

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"autoria-scraper/config"
	"autoria-scraper/models"
	"autoria-scraper/utils"
)

// Selectors for the detail page. The fallbacks cover the markup variants
// auto.ria serves for older and newer listings.
const (
	selContent     = "div.auto-content"
	selPhoneReveal = "a.phone_show_link"
	selPhone       = "span.phone"
	selOdometer    = "div.base-information span"
	selGalleryItem = "div.preview-gallery li"
	selPhotoTotal  = "span.count span.mhide"
	selPlate       = "span.state-num"
)

var (
	selTitle  = []string{".auto-content__title", "h1.head"}
	selPrice  = []string{"div.price_value strong", "div.price_value"}
	selSeller = []string{"div.seller_info_name a", "div.seller_info_name", "h4.seller_info_name a"}
	selVIN    = []string{"span.label-vin", "span.vin-code"}
)

const phoneRevealTimeout = 10 * time.Second

// Extractor turns a rendered detail page into a Car. Loading the page is
// retried; once loaded, every field is read independently and falls back to
// its zero value, so a partially broken page still yields a record.
type Extractor struct {
	timeout time.Duration
	delay   time.Duration
	retries int
	pacer   *rate.Limiter
	log     *zap.Logger
}

func NewExtractor(cfg *config.Config, log *zap.Logger) *Extractor {
	return &Extractor{
		timeout: cfg.RequestTimeout,
		delay:   cfg.RequestDelay,
		retries: cfg.MaxRetries,
		pacer:   utils.NewPacer(cfg.RequestDelay, cfg.Concurrency),
		log:     log,
	}
}

// Extract loads carURL in the given session and reads out the listing
// fields. Only a page load that keeps failing across all retry attempts is
// an error; missing or unparsable fields never are.
func (e *Extractor) Extract(ctx context.Context, page Page, carURL string) (*models.Car, error) {
	err := utils.Retry(ctx, e.retries, e.delay, func() error {
		if err := e.pacer.Wait(ctx); err != nil {
			return err
		}

		navCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		if err := page.Navigate(navCtx, carURL); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		return page.WaitVisible(navCtx, selContent, e.timeout)
	})
	if err != nil {
		return nil, fmt.Errorf("load detail page %s: %w", carURL, err)
	}

	fieldCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	car := &models.Car{URL: carURL}
	car.Title = e.firstText(fieldCtx, page, selTitle...)
	car.PriceUSD = parsePrice(e.firstText(fieldCtx, page, selPrice...))
	car.OdometerKm = e.odometer(fieldCtx, page)
	car.SellerName = e.firstText(fieldCtx, page, selSeller...)
	car.PhoneNumber = e.phone(fieldCtx, page)
	car.ImageURL = e.primaryImage(fieldCtx, page)
	car.ImagesCount = e.imageCount(fieldCtx, page)
	car.PlateNumber = e.text(fieldCtx, page, selPlate)
	car.VIN = e.firstText(fieldCtx, page, selVIN...)

	e.log.Debug("car extracted",
		zap.String("url", carURL),
		zap.String("title", car.Title),
		zap.Int("price_usd", car.PriceUSD))
	return car, nil
}

// odometer scans the base-information blocks for the mileage entry, which
// reads like "95 тис. км", and converts it to kilometers.
func (e *Extractor) odometer(ctx context.Context, page Page) int {
	for _, t := range e.texts(ctx, page, selOdometer) {
		if strings.Contains(t, "тис") {
			return parseThousandKm(t)
		}
	}
	return 0
}

// phone clicks the "показати" control, waits for the revealed number and
// normalizes the first one to digits. Any hiccup along the way means the
// seller's phone just stays unknown.
func (e *Extractor) phone(ctx context.Context, page Page) int64 {
	if err := page.Click(ctx, selPhoneReveal); err != nil {
		return 0
	}
	if err := page.WaitVisible(ctx, selPhone, phoneRevealTimeout); err != nil {
		return 0
	}
	for _, t := range e.texts(ctx, page, selPhone) {
		if s := strings.TrimSpace(t); s != "" {
			return parsePhone(s)
		}
	}
	return 0
}

func (e *Extractor) primaryImage(ctx context.Context, page Page) string {
	if src := e.attr(ctx, page, "div.gallery-order picture source", "srcset"); src != "" {
		return src
	}
	return e.attr(ctx, page, "div.photo-620 img", "src")
}

func (e *Extractor) imageCount(ctx context.Context, page Page) int {
	if n := e.count(ctx, page, selGalleryItem); n > 0 {
		return n
	}
	return parseCount(e.text(ctx, page, selPhotoTotal))
}

// Value-or-default reads. Each swallows the error so that one broken field
// cannot take the rest of the record down with it.

func (e *Extractor) text(ctx context.Context, page Page, sel string) string {
	s, err := page.Text(ctx, sel)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (e *Extractor) firstText(ctx context.Context, page Page, sels ...string) string {
	for _, sel := range sels {
		if s := e.text(ctx, page, sel); s != "" {
			return s
		}
	}
	return ""
}

func (e *Extractor) texts(ctx context.Context, page Page, sel string) []string {
	ts, err := page.Texts(ctx, sel)
	if err != nil {
		return nil
	}
	return ts
}

func (e *Extractor) attr(ctx context.Context, page Page, sel, name string) string {
	s, err := page.Attr(ctx, sel, name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (e *Extractor) count(ctx context.Context, page Page, sel string) int {
	n, err := page.Count(ctx, sel)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
