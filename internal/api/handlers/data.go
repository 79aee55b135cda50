package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/epiwatch/covidtrack/internal/query"
	"github.com/epiwatch/covidtrack/internal/scheduler"
	"github.com/epiwatch/covidtrack/internal/scheduler/jobs"
	"github.com/epiwatch/covidtrack/internal/snapshot"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// DataHandler handles the data API endpoints. It is a thin layer:
// request validation and JSON serialization only, with all series
// logic behind the query engine.
type DataHandler struct {
	engine   *query.Engine
	resolver *snapshot.Resolver
	sched    *scheduler.Scheduler
	logger   *logger.Logger
}

// NewDataHandler creates a new data handler.
func NewDataHandler(engine *query.Engine, resolver *snapshot.Resolver, sched *scheduler.Scheduler, log *logger.Logger) *DataHandler {
	return &DataHandler{
		engine:   engine,
		resolver: resolver,
		sched:    sched,
		logger:   log,
	}
}

// GetLatest returns the most recent snapshot.
// GET /data
func (h *DataHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.Latest()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetByCountry returns the latest snapshot filtered by country.
// GET /data/country/{country}
func (h *DataHandler) GetByCountry(w http.ResponseWriter, r *http.Request) {
	country := mux.Vars(r)["country"]

	records, err := h.engine.ByCountry(country)
	if err != nil {
		h.logger.WithError(err).WithField("country", country).Error("Failed to get country data")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetByDate returns the snapshot for a specific date. Under the
// default tolerant policy an unparseable or out-of-range date degrades
// to the latest snapshot; only the strict policy produces a 400 here.
// GET /data/date/{date}
func (h *DataHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	records, err := h.engine.ByDate(date)
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidDate) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid date %q, expected MM-DD-YYYY", date))
			return
		}
		h.logger.WithError(err).WithField("date", date).Error("Failed to get date data")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetCustom returns a snapshot selected by date and/or country. At
// least one of the two must be supplied.
// GET /data/custom?date=MM-DD-YYYY&country=name
func (h *DataHandler) GetCustom(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	country := r.URL.Query().Get("country")

	if date == "" && country == "" {
		respondError(w, http.StatusBadRequest, "You need to send a date or country or both")
		return
	}

	records, err := h.engine.Custom(date, country)
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidDate) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid date %q, expected MM-DD-YYYY", date))
			return
		}
		h.logger.WithError(err).Error("Failed to get custom data")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetRange returns one aggregate per date in [startDate, endDate),
// optionally restricted to a comma-separated country set.
// GET /data/range/{startDate}/{endDate}?countries=a,b
func (h *DataHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	start, errStart := snapshot.ParseDate(vars["startDate"])
	end, errEnd := snapshot.ParseDate(vars["endDate"])

	epoch := h.resolver.Epoch()
	horizon := h.resolver.Horizon()

	if errStart != nil || errEnd != nil ||
		start.Before(epoch) || end.After(horizon) || !start.Before(end) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf(
			"The date format or the range were incorrect. Valid ranges are %s to today", epoch))
		return
	}

	var countries []string
	if raw := r.URL.Query().Get("countries"); raw != "" {
		countries = strings.Split(raw, ",")
	}

	aggregates, err := h.engine.Range(start, end, countries)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"start": start.String(),
			"end":   end.String(),
		}).Error("Failed to aggregate range")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	respondJSON(w, http.StatusOK, aggregates)
}

// Refresh triggers an immediate refresh pass. The scheduler skips the
// trigger if a pass is already in flight.
// POST /data/refresh
func (h *DataHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.RunJob(jobs.RefreshJobName); err != nil {
		h.logger.WithError(err).Error("Failed to trigger refresh")
		respondError(w, http.StatusInternalServerError, "Failed to trigger refresh")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "refresh triggered",
	})
}

// GetStatus returns scheduler job statistics.
// GET /data/status
func (h *DataHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sched.GetJobStats())
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
