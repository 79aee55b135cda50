// Package ingest keeps the snapshot series current: the Backfiller
// guarantees coverage of [epoch, horizon] from the historical source,
// and the Reconciler overlays live counters onto today's snapshot.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/epiwatch/covidtrack/internal/contracts"
	"github.com/epiwatch/covidtrack/internal/snapshot"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// Backfiller walks the full date range from the series epoch to today,
// fetching and writing every missing snapshot.
type Backfiller struct {
	repo   *snapshot.Repository
	source contracts.HistoricalSource
	epoch  snapshot.Date
	logger *logger.Logger

	now func() time.Time
}

// NewBackfiller creates a backfiller.
func NewBackfiller(repo *snapshot.Repository, source contracts.HistoricalSource, epoch snapshot.Date, log *logger.Logger) *Backfiller {
	return &Backfiller{
		repo:   repo,
		source: source,
		epoch:  epoch,
		logger: log.WithField("module", "backfill"),
		now:    time.Now,
	}
}

// DateFailure records one date that could not be filled in a pass.
type DateFailure struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// PassResult tallies one backfill pass.
type PassResult struct {
	Written  int           `json:"written"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Failures []DateFailure `json:"failures,omitempty"`
}

// Run performs one full pass over [epoch, today], ascending. Existing
// dates are skipped, so a second pass with no new dates in range
// touches nothing. Each date is independent: a fetch, decode, or write
// failure is recorded and the pass moves on. Fetches are issued one at
// a time, keeping write order deterministic and the upstream polite.
func (b *Backfiller) Run(ctx context.Context) (*PassResult, error) {
	horizon := snapshot.DateOf(b.now())
	result := &PassResult{}

	b.logger.WithFields(map[string]interface{}{
		"epoch":   b.epoch.String(),
		"horizon": horizon.String(),
	}).Info("Starting backfill pass")

	for d := b.epoch; !d.After(horizon); d = d.AddDays(1) {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if b.repo.Exists(d) {
			result.Skipped++
			continue
		}

		if err := b.fillDate(ctx, d); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, DateFailure{
				Date:   d.String(),
				Reason: err.Error(),
			})
			b.logger.WithError(err).WithField("date", d.String()).Warn("Failed to backfill date")
			continue
		}

		result.Written++
	}

	b.logger.WithFields(map[string]interface{}{
		"written": result.Written,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("Backfill pass completed")

	return result, nil
}

// fillDate fetches, decodes, and persists one date. Decoding before
// writing keeps unparseable upstream payloads out of the store.
func (b *Backfiller) fillDate(ctx context.Context, d snapshot.Date) error {
	raw, err := b.source.FetchDaily(ctx, d.Time())
	if err != nil {
		return err
	}

	snap, err := snapshot.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode daily report: %w", err)
	}

	return b.repo.Write(d, snap)
}
