package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/covidtrack/internal/contracts"
	"github.com/epiwatch/covidtrack/pkg/httputil"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

const statsPage = `<html><body>
<table id="main_table_countries_today">
<thead><tr><th>#</th><th>Country</th><th>Cases</th><th>New</th><th>Deaths</th><th>New</th><th>Recovered</th></tr></thead>
<tbody>
<tr><td>1</td><td>USA</td><td>1,234,567</td><td>+12</td><td>76,543</td><td>+3</td><td>200,000</td></tr>
<tr><td>2</td><td>France</td><td>131,863</td><td></td><td>25,201</td><td></td><td>N/A</td></tr>
<tr><td>3</td><td></td><td>9</td><td></td><td>9</td><td></td><td>9</td></tr>
<tr><td colspan="7">World</td></tr>
</tbody>
</table>
</body></html>`

func newTestLiveClient(baseURL string, ttl time.Duration) *Client {
	httpClient := httputil.New(logger.NewNop(), 5*time.Second).DisableRetry()
	return NewClient(httpClient, logger.NewNop(), baseURL, ttl)
}

func TestParseCountryTable(t *testing.T) {
	table, err := parseCountryTable(strings.NewReader(statsPage))
	require.NoError(t, err)

	// Blank country names and short rows are skipped.
	require.Len(t, table, 2)

	usa := table["usa"]
	assert.Equal(t, int64(1234567), usa.Confirmed)
	assert.Equal(t, int64(76543), usa.Deaths)
	assert.Equal(t, int64(200000), usa.Recovered)

	france := table["france"]
	assert.Equal(t, int64(131863), france.Confirmed)
	assert.Equal(t, int64(0), france.Recovered, "N/A parses as zero")
}

func TestParseNum(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1,234,567", 1234567},
		{"+12", 12},
		{" 42 ", 42},
		{"N/A", 0},
		{"-", 0},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseNum(tt.input), "parseNum(%q)", tt.input)
	}
}

func TestFetchCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statsPage))
	}))
	defer srv.Close()

	client := newTestLiveClient(srv.URL, time.Minute)

	got, err := client.FetchCounters(context.Background(), contracts.RegionKey{Country: "france"})
	require.NoError(t, err)
	assert.Equal(t, contracts.LiveCounters{Confirmed: 131863, Deaths: 25201}, got)
}

func TestFetchCountersNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statsPage))
	}))
	defer srv.Close()

	client := newTestLiveClient(srv.URL, time.Minute)

	_, err := client.FetchCounters(context.Background(), contracts.RegionKey{Country: "Atlantis"})
	assert.ErrorIs(t, err, contracts.ErrRemoteEmpty)
}

func TestFetchCountersProvinceKeyEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statsPage))
	}))
	defer srv.Close()

	client := newTestLiveClient(srv.URL, time.Minute)

	// The page is country-granular: province keys have no aggregate row.
	_, err := client.FetchCounters(context.Background(), contracts.RegionKey{Country: "USA", Province: "New York"})
	assert.ErrorIs(t, err, contracts.ErrRemoteEmpty)
}

func TestFetchCountersServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestLiveClient(srv.URL, time.Minute)

	_, err := client.FetchCounters(context.Background(), contracts.RegionKey{Country: "France"})
	assert.ErrorIs(t, err, contracts.ErrRemoteUnavailable)
}

func TestFetchCountersCachesPage(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(statsPage))
	}))
	defer srv.Close()

	client := newTestLiveClient(srv.URL, time.Minute)

	for _, country := range []string{"USA", "France", "USA"} {
		_, err := client.FetchCounters(context.Background(), contracts.RegionKey{Country: country})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "one tick over many regions costs one page fetch")
}

func TestFetchCountersCacheExpires(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(statsPage))
	}))
	defer srv.Close()

	client := newTestLiveClient(srv.URL, time.Nanosecond)

	for i := 0; i < 2; i++ {
		_, err := client.FetchCounters(context.Background(), contracts.RegionKey{Country: "USA"})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
