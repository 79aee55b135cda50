package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/epiwatch/covidtrack/internal/contracts"
	"github.com/epiwatch/covidtrack/internal/snapshot"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// lastUpdateFormat is ISO-8601 local time at second precision, the
// format the upstream uses for the Last Update field.
const lastUpdateFormat = "2006-01-02T15:04:05"

// Reconciler overlays live per-region counters onto the current day's
// snapshot, using yesterday's record set as the template.
type Reconciler struct {
	repo   *snapshot.Repository
	live   contracts.LiveSource
	logger *logger.Logger

	now func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(repo *snapshot.Repository, live contracts.LiveSource, log *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		live:   live,
		logger: log.WithField("module", "reconcile"),
		now:    time.Now,
	}
}

// Run performs one reconciliation tick. Yesterday's snapshot is the
// template; every distinct (country, province) key is queried against
// the live source, and records whose key answered get their counters
// and Last Update overwritten. Keys that answer empty or fail keep
// their template values. Today's snapshot is written exactly once,
// after every key has completed or failed — a partially reconciled
// snapshot is still a usable one.
func (r *Reconciler) Run(ctx context.Context) error {
	horizon := snapshot.DateOf(r.now())
	yesterday := horizon.AddDays(-1)

	tmpl, err := r.repo.Read(yesterday)
	if err != nil {
		return fmt.Errorf("load template %s: %w", yesterday, err)
	}
	snap := tmpl.Clone()

	keys := regionKeys(snap.Records)

	counters := make(map[contracts.RegionKey]contracts.LiveCounters, len(keys))
	missed := 0
	for _, key := range keys {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c, err := r.live.FetchCounters(ctx, key)
		if err != nil {
			missed++
			if errors.Is(err, contracts.ErrRemoteEmpty) {
				// No update signal, not a failure.
				r.logger.WithField("region", key).Debug("Live source had no data for region")
			} else {
				r.logger.WithError(err).WithField("region", key).Warn("Live fetch failed for region")
			}
			continue
		}
		counters[key] = c
	}

	stamp := r.now().Format(lastUpdateFormat)
	updated := 0
	for _, rec := range snap.Records {
		key := contracts.RegionKey{Country: rec.Country(), Province: rec.Province()}
		c, ok := counters[key]
		if !ok {
			continue
		}

		rec[snapshot.FieldConfirmed] = strconv.FormatInt(c.Confirmed, 10)
		rec[snapshot.FieldDeaths] = strconv.FormatInt(c.Deaths, 10)
		rec[snapshot.FieldRecovered] = strconv.FormatInt(c.Recovered, 10)
		rec[snapshot.FieldLastUpdate] = stamp
		updated++
	}

	if err := r.repo.Write(horizon, snap); err != nil {
		return fmt.Errorf("write today's snapshot: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"date":    horizon.String(),
		"regions": len(keys),
		"missed":  missed,
		"updated": updated,
	}).Info("Reconciliation completed")

	return nil
}

// regionKeys returns the distinct (country, province) pairs in
// first-seen order.
func regionKeys(records []snapshot.Record) []contracts.RegionKey {
	seen := make(map[contracts.RegionKey]bool, len(records))
	keys := make([]contracts.RegionKey, 0, len(records))
	for _, rec := range records {
		key := contracts.RegionKey{Country: rec.Country(), Province: rec.Province()}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}
