// Package live scrapes current per-country counters from a
// worldometers-style stats page.
package live

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/epiwatch/covidtrack/internal/contracts"
	"github.com/epiwatch/covidtrack/pkg/httputil"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// Worldometers main table column layout.
const (
	colCountry   = 1
	colConfirmed = 2
	colDeaths    = 4
	colRecovered = 6
	minCells     = 7
)

// Client fetches live counters. One page fetch covers every country,
// so the parsed table is cached for a short TTL: a reconciliation tick
// over N regions costs one upstream request.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	cacheTTL   time.Duration

	mu        sync.Mutex
	table     map[string]contracts.LiveCounters
	fetchedAt time.Time
}

// NewClient creates a new live source client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string, cacheTTL time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "live"),
		baseURL:    baseURL,
		cacheTTL:   cacheTTL,
	}
}

// FetchCounters returns the current counters for a region. The live
// source is country-granular: a key whose province narrows below that
// has no matching aggregate row and reports ErrRemoteEmpty, which
// callers treat as "leave existing values unchanged".
func (c *Client) FetchCounters(ctx context.Context, key contracts.RegionKey) (contracts.LiveCounters, error) {
	table, err := c.countryTable(ctx)
	if err != nil {
		return contracts.LiveCounters{}, err
	}

	if key.Province != "" {
		return contracts.LiveCounters{}, fmt.Errorf("%w: %s/%s", contracts.ErrRemoteEmpty, key.Country, key.Province)
	}

	counters, ok := table[strings.ToLower(strings.TrimSpace(key.Country))]
	if !ok {
		return contracts.LiveCounters{}, fmt.Errorf("%w: %s", contracts.ErrRemoteEmpty, key.Country)
	}

	return counters, nil
}

// countryTable returns the parsed live table, refetching when the
// cached copy is older than the TTL.
func (c *Client) countryTable(ctx context.Context) (map[string]contracts.LiveCounters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table != nil && time.Since(c.fetchedAt) < c.cacheTTL {
		return c.table, nil
	}

	resp, err := c.httpClient.Get(ctx, c.baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", contracts.ErrRemoteUnavailable, resp.StatusCode)
	}

	table, err := parseCountryTable(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", contracts.ErrRemoteUnavailable, err)
	}

	c.table = table
	c.fetchedAt = time.Now()

	c.logger.WithField("countries", len(table)).Debug("Refreshed live table")
	return table, nil
}

// parseCountryTable extracts per-country counters from the stats page.
func parseCountryTable(r io.Reader) (map[string]contracts.LiveCounters, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	table := make(map[string]contracts.LiveCounters)
	doc.Find("table#main_table_countries_today tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minCells {
			return
		}

		country := strings.TrimSpace(cells.Eq(colCountry).Text())
		if country == "" {
			return
		}

		table[strings.ToLower(country)] = contracts.LiveCounters{
			Confirmed: parseNum(cells.Eq(colConfirmed).Text()),
			Deaths:    parseNum(cells.Eq(colDeaths).Text()),
			Recovered: parseNum(cells.Eq(colRecovered).Text()),
		}
	})

	return table, nil
}

// parseNum parses a formatted counter cell ("1,234,567", "+12", "N/A").
func parseNum(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "+", "")
	if s == "" || s == "-" || strings.EqualFold(s, "N/A") {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
