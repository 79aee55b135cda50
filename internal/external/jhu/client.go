// Package jhu fetches the upstream per-date daily-report CSVs from the
// JHU CSSE GitHub tree (or any source serving the same layout).
package jhu

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/epiwatch/covidtrack/internal/contracts"
	"github.com/epiwatch/covidtrack/pkg/httputil"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

const dateFormat = "01-02-2006"

// Client handles communication with the historical bulk source.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new historical source client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "jhu"),
		baseURL:    baseURL,
	}
}

// FetchDaily retrieves the raw daily dataset for a date. A 404 from
// the upstream means no dataset exists for that date, which is a
// different condition from a transport failure.
func (c *Client) FetchDaily(ctx context.Context, date time.Time) ([]byte, error) {
	url := fmt.Sprintf("%s/%s.csv", c.baseURL, date.Format(dateFormat))

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", contracts.ErrRemoteNotFound, date.Format(dateFormat))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", contracts.ErrRemoteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", contracts.ErrRemoteUnavailable, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"date":  date.Format(dateFormat),
		"bytes": len(body),
	}).Debug("Fetched daily report")

	return body, nil
}
