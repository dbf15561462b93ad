package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/rental-watch-bot/internal/config"
	"github.com/pauljones0/rental-watch-bot/internal/models"
	"github.com/pauljones0/rental-watch-bot/internal/pricing"
	"github.com/pauljones0/rental-watch-bot/internal/util"
	"github.com/pauljones0/rental-watch-bot/internal/validator"
)

const (
	maxRetries       = 3
	pageConcurrency  = 2
	defaultRetryBase = 2 * time.Second
)

type Scraper interface {
	FetchListings(ctx context.Context) ([]models.Listing, error)
}

// Client scrapes the configured search result pages.
type Client struct {
	fetcher   Fetcher
	selectors SelectorConfig
	config    *config.Config
	validate  *validator.Validator
	retryBase time.Duration
	now       func() time.Time
}

func New(cfg *config.Config, fetcher Fetcher) *Client {
	return &Client{
		fetcher:   fetcher,
		selectors: LoadConfig(cfg.SelectorsPath),
		config:    cfg,
		validate:  validator.New(),
		retryBase: defaultRetryBase,
		now:       time.Now,
	}
}

// NewFetcher builds the fetcher selected by FETCH_MODE.
func NewFetcher(cfg *config.Config) Fetcher {
	if cfg.FetchMode == "browser" {
		return NewBrowserFetcher(cfg.FetchTimeout, cfg.UserAgent)
	}
	return NewHTTPFetcher(cfg.FetchTimeout, cfg.UserAgent)
}

// FetchListings returns the listings of pages 1..MaxPages in page order.
// Page 1 must succeed; later pages that fail are logged and skipped.
func (c *Client) FetchListings(ctx context.Context) ([]models.Listing, error) {
	if !util.IsAllowedDomain(c.config.SearchURL, c.config.AllowedDomains) {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotAllowed, c.config.SearchURL)
	}

	pages := max(c.config.MaxPages, 1)
	results := make([][]models.Listing, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageConcurrency)
	for i := 0; i < pages; i++ {
		pageURL := PageURL(c.config.SearchURL, i+1)
		g.Go(func() error {
			listings, err := c.scrapePage(gctx, pageURL)
			if err != nil {
				if i == 0 {
					return fmt.Errorf("failed to scrape %s: %w", pageURL, err)
				}
				slog.Warn("Skipping search page", "url", pageURL, "error", err)
				return nil
			}
			results[i] = listings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Listing
	for _, page := range results {
		all = append(all, page...)
	}
	return all, nil
}

func (c *Client) scrapePage(ctx context.Context, pageURL string) ([]models.Listing, error) {
	var listings []models.Listing
	err := util.RetryWithBackoff(ctx, maxRetries, c.retryBase, func(attempt int) error {
		slog.Debug("Scraping search page", "url", pageURL, "attempt", attempt+1)
		doc, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return util.Permanent(err)
			}
			return err
		}
		listings, err = c.parsePage(doc, pageURL)
		return err
	})
	return listings, err
}

// parsePage extracts listings from one search result document. Items missing
// a link or a price are skipped.
func (c *Client) parsePage(doc *goquery.Document, pageURL string) ([]models.Listing, error) {
	sel := c.selectors.SearchList
	items := doc.Find(sel.Item)
	if items.Length() == 0 {
		if sel.Results != "" && doc.Find(sel.Results).Length() > 0 {
			slog.Info("Search page has no results", "url", pageURL)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s matched nothing on %s", ErrBlocked, sel.Item, pageURL)
	}

	source := util.GetDomain(pageURL)
	discovered := c.now().UTC()
	listings := make([]models.Listing, 0, items.Length())

	items.Each(func(_ int, s *goquery.Selection) {
		link := firstMatch(s, sel.Elements.Link)
		if link == nil {
			slog.Debug("Skipping item without link", "page", pageURL)
			return
		}
		href, _ := link.Attr("href")
		listingURL, err := util.ResolveURL(pageURL, href)
		if err != nil {
			slog.Debug("Skipping item with unusable link", "href", href, "error", err)
			return
		}

		priceSel := firstMatch(s, sel.Elements.Price)
		if priceSel == nil {
			slog.Debug("Skipping item without price", "url", listingURL)
			return
		}
		rawPrice := cleanText(priceSel.Text())

		title := models.DefaultTitle
		if t := firstMatch(s, sel.Elements.Title); t != nil {
			if text := cleanText(t.Text()); text != "" {
				title = text
			}
		}
		var location string
		if l := firstMatch(s, sel.Elements.Location); l != nil {
			location = cleanText(l.Text())
		}

		listing := models.Listing{
			URL:          listingURL,
			Title:        title,
			RawPrice:     rawPrice,
			ParsedPrice:  pricing.ParsePricePtr(rawPrice),
			Location:     location,
			Source:       source,
			DiscoveredAt: discovered,
		}
		if err := c.validate.ValidateStruct(listing); err != nil {
			slog.Debug("Skipping invalid listing", "url", listingURL, "error", err)
			return
		}
		listings = append(listings, listing)
	})

	slog.Debug("Parsed search page", "url", pageURL, "items", items.Length(), "listings", len(listings))
	return listings, nil
}

// PageURL returns the URL of result page n (1-based) for a search URL.
func PageURL(searchURL string, n int) string {
	if n <= 1 {
		return searchURL
	}
	return fmt.Sprintf("%s/page-%d", strings.TrimRight(searchURL, "/"), n)
}

// cleanText collapses runs of whitespace, including the newlines Pararius
// puts inside price and title elements.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
