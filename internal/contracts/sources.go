package contracts

import (
	"context"
	"errors"
	"time"
)

// Remote failure taxonomy shared by every upstream client and the
// ingest components that consume them.
var (
	// ErrRemoteNotFound means the upstream confirms it has no dataset
	// for the requested date. Permanent for that date within a pass.
	ErrRemoteNotFound = errors.New("remote: dataset not found")

	// ErrRemoteUnavailable means transport failure or a non-2xx answer
	// other than not-found. Transient; retried on the next pass.
	ErrRemoteUnavailable = errors.New("remote: unavailable")

	// ErrRemoteEmpty means a live query succeeded but had nothing to
	// report for the key. Not a failure: callers leave existing values
	// unchanged.
	ErrRemoteEmpty = errors.New("remote: no matching data")
)

// RegionKey identifies a live-data query target. Province is optional
// and, when present, narrows the match.
type RegionKey struct {
	Country  string
	Province string
}

// LiveCounters are the current cumulative counters for one region.
type LiveCounters struct {
	Confirmed int64
	Recovered int64
	Deaths    int64
}

// HistoricalSource retrieves the raw daily dataset for a given date.
type HistoricalSource interface {
	FetchDaily(ctx context.Context, date time.Time) ([]byte, error)
}

// LiveSource retrieves current counters for a region.
type LiveSource interface {
	FetchCounters(ctx context.Context, key RegionKey) (LiveCounters, error)
}
