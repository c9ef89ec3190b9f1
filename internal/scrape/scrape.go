// Package scrape collects price observations from product pages.
// Each product is attempted independently: a page that keeps failing
// after the retry budget is logged and skipped, never aborting the batch.
package scrape

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricewatch/internal/database"
)

// Result holds the results of a scrape run.
type Result struct {
	Scraped int
	Failed  int
}

// Scraper fetches and parses product pages into observations.
type Scraper struct {
	db          *database.DB
	client      *http.Client
	userAgent   string
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// Options configures a Scraper. Zero values fall back to defaults.
type Options struct {
	UserAgent   string
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// New creates a Scraper over the given store.
func New(db *database.DB, opts Options) *Scraper {
	if opts.UserAgent == "" {
		opts.UserAgent = "pricewatch/1.0 (price monitor)"
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 6
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Scraper{
		db:          db,
		client:      &http.Client{Timeout: opts.Timeout},
		userAgent:   opts.UserAgent,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		now:         time.Now,
	}
}

// Run scrapes every active product once and appends an observation per
// success.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	products, err := s.db.GetActiveProducts()
	if err != nil {
		return nil, fmt.Errorf("loading product catalog: %w", err)
	}
	if len(products) == 0 {
		log.Println("No active products to scrape")
		return &Result{}, nil
	}

	result := &Result{}
	for _, p := range products {
		if err := s.scrapeProduct(ctx, p); err != nil {
			log.Printf("Scrape failed for product %d (%s): %v", p.ID, p.URL, err)
			result.Failed++
			continue
		}
		result.Scraped++
	}

	log.Printf("Scrape complete: %d scraped, %d failed", result.Scraped, result.Failed)
	return result, nil
}

// scrapeProduct fetches one page with bounded retry and stores the
// reading.
func (s *Scraper) scrapeProduct(ctx context.Context, p database.Product) error {
	var reading *pageReading
	var lastErr error

	delay := s.retryDelay
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		reading, lastErr = s.fetchPage(ctx, p.URL)
		if lastErr == nil {
			break
		}
		if attempt < s.maxAttempts {
			log.Printf("Attempt %d/%d for product %d failed: %v — retrying in %v",
				attempt, s.maxAttempts, p.ID, lastErr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}
	if lastErr != nil {
		return fmt.Errorf("after %d attempts: %w", s.maxAttempts, lastErr)
	}

	now := s.now()
	_, err := s.db.InsertObservation(database.Observation{
		ProductID: p.ID,
		Day:       database.DayOf(now),
		Price:     reading.price,
		Rating:    reading.rating,
		Title:     &reading.title,
		URL:       &p.URL,
		ScrapedAt: now.Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		return fmt.Errorf("storing observation: %w", err)
	}
	log.Printf("Scraped product %d: %q price=%.2f", p.ID, reading.title, reading.price)
	return nil
}

// pageReading is one parsed product page.
type pageReading struct {
	title  string
	rating *float64
	price  float64
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (*pageReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return parseReading(doc)
}

func parseReading(doc *goquery.Document) (*pageReading, error) {
	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		return nil, fmt.Errorf("no product title on page")
	}

	priceText := strings.TrimSpace(doc.Find(".a-price span").First().Text())
	price, err := parsePrice(priceText)
	if err != nil {
		return nil, err
	}

	reading := &pageReading{title: title, price: price}

	// Rating is optional; pages without reviews simply omit it.
	if attr, ok := doc.Find("#acrPopover").First().Attr("title"); ok && len(attr) >= 3 {
		if rating, err := strconv.ParseFloat(attr[:3], 64); err == nil {
			reading.rating = &rating
		}
	}
	return reading, nil
}

// parsePrice strips currency decoration ("US$1,299.99") down to a number.
func parsePrice(text string) (float64, error) {
	cleaned := strings.NewReplacer("US", "", "$", "", ",", "").Replace(text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("no price on page")
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q", text)
	}
	return price, nil
}
