package jhu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/covidtrack/internal/contracts"
	"github.com/epiwatch/covidtrack/pkg/httputil"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

const reportCSV = "Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered\n,France,1/22/2020 17:00,5,1,0\n"

func newTestClient(baseURL string) *Client {
	httpClient := httputil.New(logger.NewNop(), 5*time.Second).DisableRetry()
	return NewClient(httpClient, logger.NewNop(), baseURL)
}

func TestFetchDaily(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(reportCSV))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	body, err := client.FetchDaily(context.Background(), time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "/01-22-2020.csv", gotPath)
	assert.Equal(t, reportCSV, string(body))
}

func TestFetchDailyNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.FetchDaily(context.Background(), time.Date(2020, time.March, 15, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, contracts.ErrRemoteNotFound)
}

func TestFetchDailyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.FetchDaily(context.Background(), time.Date(2020, time.March, 15, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, contracts.ErrRemoteUnavailable)
}

func TestFetchDailyTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server refuses connections

	client := newTestClient(srv.URL)

	_, err := client.FetchDaily(context.Background(), time.Date(2020, time.March, 15, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, contracts.ErrRemoteUnavailable)
}
