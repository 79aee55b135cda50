package query

import (
	"fmt"
	"strings"

	"github.com/epiwatch/covidtrack/internal/snapshot"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// Aggregate is the per-date sum of counters across a filtered record
// set. Derived on read, never persisted.
type Aggregate struct {
	Date      string `json:"date"`
	Confirmed int64  `json:"confirmed"`
	Recovered int64  `json:"recovered"`
	Deaths    int64  `json:"deaths"`
}

// Engine serves point, filtered, and range-aggregated queries over the
// snapshot series. It reads the repository only; it never fetches
// remotely.
type Engine struct {
	repo     *snapshot.Repository
	resolver *snapshot.Resolver
	logger   *logger.Logger
}

// New creates a query engine.
func New(repo *snapshot.Repository, resolver *snapshot.Resolver, log *logger.Logger) *Engine {
	return &Engine{
		repo:     repo,
		resolver: resolver,
		logger:   log.WithField("module", "query"),
	}
}

// Latest returns the most recent snapshot's records.
func (e *Engine) Latest() ([]snapshot.Record, error) {
	return e.ByDate("latest")
}

// ByDate returns the records for the resolved date. Invalid input is
// handled by the resolver's configured policy.
func (e *Engine) ByDate(raw string) ([]snapshot.Record, error) {
	date, err := e.resolver.Resolve(raw)
	if err != nil {
		return nil, err
	}

	snap, err := e.repo.Read(date)
	if err != nil {
		return nil, err
	}

	return snap.Records, nil
}

// ByCountry returns the latest records whose Country/Region equals
// country, case-insensitively.
func (e *Engine) ByCountry(country string) ([]snapshot.Record, error) {
	return e.Custom("latest", country)
}

// Custom resolves the date (or latest) and applies the country filter
// when present. The at-least-one-of-date-or-country rule is enforced
// by the boundary layer, not here.
func (e *Engine) Custom(dateRaw, country string) ([]snapshot.Record, error) {
	records, err := e.ByDate(dateRaw)
	if err != nil {
		return nil, err
	}

	if country == "" {
		return records, nil
	}

	filtered := make([]snapshot.Record, 0, len(records))
	for _, rec := range records {
		if strings.EqualFold(rec.Country(), country) {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// Range returns one Aggregate per date in [start, end), ascending,
// optionally restricted to a country set (case-insensitive). Each date
// is read directly from the repository: backfill has already
// guaranteed coverage, so a missing date is a real failure, not an
// occasion for fallback. Input validity is the boundary layer's job.
func (e *Engine) Range(start, end snapshot.Date, countries []string) ([]Aggregate, error) {
	wanted := make(map[string]bool, len(countries))
	for _, c := range countries {
		wanted[strings.ToLower(strings.TrimSpace(c))] = true
	}

	var out []Aggregate
	for d := start; d.Before(end); d = d.AddDays(1) {
		snap, err := e.repo.Read(d)
		if err != nil {
			return nil, fmt.Errorf("range read %s: %w", d, err)
		}

		agg := Aggregate{Date: d.String()}
		for _, rec := range snap.Records {
			if len(wanted) > 0 && !wanted[strings.ToLower(rec.Country())] {
				continue
			}
			agg.Confirmed += rec.Confirmed().OrZero()
			agg.Recovered += rec.Recovered().OrZero()
			agg.Deaths += rec.Deaths().OrZero()
		}
		out = append(out, agg)
	}

	return out, nil
}
