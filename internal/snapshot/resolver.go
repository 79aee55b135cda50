package snapshot

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSeriesEmpty means the resolver walked below the epoch without
	// finding a snapshot. Unreachable once backfill has completed at
	// least once; a hard failure if it occurs.
	ErrSeriesEmpty = errors.New("snapshot: series empty")

	// ErrInvalidDate is returned for malformed or out-of-range date
	// input when the strict policy is enabled. Under the default
	// tolerant policy the input degrades to the latest snapshot
	// instead.
	ErrInvalidDate = errors.New("snapshot: invalid date")
)

// Resolver finds the nearest existing snapshot at or before a
// requested date.
type Resolver struct {
	repo   *Repository
	epoch  Date
	strict bool

	now func() time.Time
}

// NewResolver creates a resolver over the repository. strict selects
// the invalid-date policy: reject, or silently fall back to latest.
func NewResolver(repo *Repository, epoch Date, strict bool) *Resolver {
	return &Resolver{
		repo:   repo,
		epoch:  epoch,
		strict: strict,
		now:    time.Now,
	}
}

// Epoch returns the first date the series covers.
func (rv *Resolver) Epoch() Date {
	return rv.epoch
}

// Horizon returns the most recent date the series should cover:
// "today" at evaluation time.
func (rv *Resolver) Horizon() Date {
	return DateOf(rv.now())
}

// Latest resolves the most recent existing snapshot date.
func (rv *Resolver) Latest() (Date, error) {
	return rv.walkBack(rv.Horizon())
}

// Resolve maps a requested date string to the date of the nearest
// existing snapshot at or before it. An empty string or "latest"
// starts from the horizon. A malformed or out-of-range date either
// degrades to latest (tolerant, the default) or fails with
// ErrInvalidDate (strict).
func (rv *Resolver) Resolve(raw string) (Date, error) {
	start := rv.Horizon()

	if raw != "" && raw != "latest" {
		d, err := ParseDate(raw)
		switch {
		case err != nil || d.Before(rv.epoch) || d.After(start):
			if rv.strict {
				return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
			}
			// Tolerant policy: malformed input never errors, it
			// degrades to the most recent available data.
		default:
			start = d
		}
	}

	return rv.walkBack(start)
}

// walkBack steps backward one day at a time until a snapshot exists,
// bounded by the epoch.
func (rv *Resolver) walkBack(from Date) (Date, error) {
	for d := from; !d.Before(rv.epoch); d = d.AddDays(-1) {
		if rv.repo.Exists(d) {
			return d, nil
		}
	}
	return Date{}, fmt.Errorf("%w: no snapshot at or before %s", ErrSeriesEmpty, from)
}
