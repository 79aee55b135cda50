package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/epiwatch/covidtrack/internal/api/handlers"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(dataHandler *handlers.DataHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Data endpoints, path shapes matching the public API contract.
	data := r.PathPrefix("/data").Subrouter()
	data.HandleFunc("", dataHandler.GetLatest).Methods("GET")
	data.HandleFunc("/country/{country}", dataHandler.GetByCountry).Methods("GET")
	data.HandleFunc("/date/{date}", dataHandler.GetByDate).Methods("GET")
	data.HandleFunc("/custom", dataHandler.GetCustom).Methods("GET")
	data.HandleFunc("/range/{startDate}/{endDate}", dataHandler.GetRange).Methods("GET")
	data.HandleFunc("/refresh", dataHandler.Refresh).Methods("POST")
	data.HandleFunc("/status", dataHandler.GetStatus).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "covidtrack-api",
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
