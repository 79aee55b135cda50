package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/covidtrack/internal/api"
	"github.com/epiwatch/covidtrack/internal/api/handlers"
	"github.com/epiwatch/covidtrack/internal/contracts"
	"github.com/epiwatch/covidtrack/internal/ingest"
	"github.com/epiwatch/covidtrack/internal/query"
	"github.com/epiwatch/covidtrack/internal/scheduler"
	"github.com/epiwatch/covidtrack/internal/scheduler/jobs"
	"github.com/epiwatch/covidtrack/internal/snapshot"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

const (
	olderCSV = `Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered
,France,1/22/2020 17:00,5,1,0
`
	newerCSV = `Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered
,France,1/23/2020 17:00,7,1,2
,French Polynesia,1/23/2020 17:00,1,0,0
`
)

// emptySource answers not-found for every date; refresh passes in
// tests stay cheap and deterministic.
type emptySource struct{}

func (emptySource) FetchDaily(ctx context.Context, date time.Time) ([]byte, error) {
	return nil, contracts.ErrRemoteNotFound
}

type emptyLive struct{}

func (emptyLive) FetchCounters(ctx context.Context, key contracts.RegionKey) (contracts.LiveCounters, error) {
	return contracts.LiveCounters{}, contracts.ErrRemoteEmpty
}

// testAPI wires a full router over a temp store seeded with two
// snapshots just behind today, with the epoch five days back.
type testAPI struct {
	handler http.Handler
	epoch   snapshot.Date
	today   snapshot.Date
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log := logger.NewNop()
	repo, err := snapshot.NewRepository(t.TempDir(), log)
	require.NoError(t, err)

	today := snapshot.DateOf(time.Now())
	epoch := today.AddDays(-5)

	seed := func(date snapshot.Date, csv string) {
		snap, err := snapshot.Decode(strings.NewReader(csv))
		require.NoError(t, err)
		require.NoError(t, repo.Write(date, snap))
	}
	seed(today.AddDays(-2), olderCSV)
	seed(today.AddDays(-1), newerCSV)

	resolver := snapshot.NewResolver(repo, epoch, false)
	engine := query.New(repo, resolver, log)

	sched := scheduler.New(log)
	backfiller := ingest.NewBackfiller(repo, emptySource{}, epoch, log)
	reconciler := ingest.NewReconciler(repo, emptyLive{}, log)
	require.NoError(t, sched.AddJob(jobs.NewRefreshJob(backfiller, reconciler, "0 0 * * * *", log)))

	handler := handlers.NewDataHandler(engine, resolver, sched, log)

	return &testAPI{
		handler: api.NewRouter(handler, log),
		epoch:   epoch,
		today:   today,
	}
}

func (a *testAPI) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeRecords(t *testing.T, rec *httptest.ResponseRecorder) []map[string]string {
	t.Helper()
	var records []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	return records
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	rec := a.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetLatest(t *testing.T) {
	a := newTestAPI(t)

	rec := a.get(t, "/data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	records := decodeRecords(t, rec)
	require.Len(t, records, 2)
	assert.Equal(t, "7", records[0]["Confirmed"])
}

func TestGetByCountry(t *testing.T) {
	a := newTestAPI(t)

	rec := a.get(t, "/data/country/france")
	require.Equal(t, http.StatusOK, rec.Code)

	records := decodeRecords(t, rec)
	require.Len(t, records, 1, "French Polynesia must not match france")
	assert.Equal(t, "France", records[0]["Country/Region"])
}

func TestGetByDateExact(t *testing.T) {
	a := newTestAPI(t)

	rec := a.get(t, "/data/date/"+a.today.AddDays(-2).String())
	require.Equal(t, http.StatusOK, rec.Code)

	records := decodeRecords(t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "5", records[0]["Confirmed"])
}

func TestGetByDateInvalidIsLatest(t *testing.T) {
	a := newTestAPI(t)

	latest := a.get(t, "/data")
	rec := a.get(t, "/data/date/13-45-2020")

	// Tolerant policy: a malformed date degrades to the latest snapshot.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, latest.Body.String(), rec.Body.String())
}

func TestGetCustom(t *testing.T) {
	a := newTestAPI(t)

	t.Run("missing both params", func(t *testing.T) {
		rec := a.get(t, "/data/custom")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "You need to send a date or country or both")
	})

	t.Run("country only", func(t *testing.T) {
		rec := a.get(t, "/data/custom?country=french%20polynesia")
		require.Equal(t, http.StatusOK, rec.Code)
		records := decodeRecords(t, rec)
		require.Len(t, records, 1)
		assert.Equal(t, "French Polynesia", records[0]["Country/Region"])
	})

	t.Run("date and country", func(t *testing.T) {
		rec := a.get(t, fmt.Sprintf("/data/custom?date=%s&country=france", a.today.AddDays(-2)))
		require.Equal(t, http.StatusOK, rec.Code)
		records := decodeRecords(t, rec)
		require.Len(t, records, 1)
		assert.Equal(t, "5", records[0]["Confirmed"])
	})
}

func TestGetRange(t *testing.T) {
	a := newTestAPI(t)

	rec := a.get(t, fmt.Sprintf("/data/range/%s/%s", a.today.AddDays(-2), a.today))
	require.Equal(t, http.StatusOK, rec.Code)

	var aggregates []query.Aggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &aggregates))

	// End exclusive: two seeded days, today itself not included.
	require.Len(t, aggregates, 2)
	assert.Equal(t, int64(5), aggregates[0].Confirmed)
	assert.Equal(t, int64(7+1), aggregates[1].Confirmed)
	assert.Equal(t, int64(2), aggregates[1].Recovered)
}

func TestGetRangeCountries(t *testing.T) {
	a := newTestAPI(t)

	rec := a.get(t, fmt.Sprintf("/data/range/%s/%s?countries=france", a.today.AddDays(-1), a.today))
	require.Equal(t, http.StatusOK, rec.Code)

	var aggregates []query.Aggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &aggregates))
	require.Len(t, aggregates, 1)
	assert.Equal(t, int64(7), aggregates[0].Confirmed)
}

func TestGetRangeRejectsBadRanges(t *testing.T) {
	a := newTestAPI(t)

	paths := map[string]string{
		"malformed start":  fmt.Sprintf("/data/range/garbage/%s", a.today),
		"malformed end":    fmt.Sprintf("/data/range/%s/13-45-2020", a.today.AddDays(-2)),
		"empty range":      fmt.Sprintf("/data/range/%s/%s", a.today.AddDays(-1), a.today.AddDays(-1)),
		"inverted range":   fmt.Sprintf("/data/range/%s/%s", a.today, a.today.AddDays(-2)),
		"end past horizon": fmt.Sprintf("/data/range/%s/%s", a.today.AddDays(-1), a.today.AddDays(1)),
		"start pre-epoch":  fmt.Sprintf("/data/range/%s/%s", a.epoch.AddDays(-1), a.today),
	}

	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			rec := a.get(t, path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "The date format or the range were incorrect")
		})
	}
}

func TestRefresh(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/data/refresh", nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "refresh triggered")
}

func TestGetStatus(t *testing.T) {
	a := newTestAPI(t)

	rec := a.get(t, "/data/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]scheduler.JobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Contains(t, stats, jobs.RefreshJobName)
	assert.Equal(t, "0 0 * * * *", stats[jobs.RefreshJobName].Schedule)
}
