// Package handler provides the HTTP endpoints of the fulfillment service.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/middleware"
)

// writeJSON writes data as a JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		middleware.LoggerWithCorrelation(r.Context(), logger).Debug("failed to write response", zap.Error(err))
	}
}

// internalError writes the plain-text 500 response used for every endpoint failure.
func internalError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
