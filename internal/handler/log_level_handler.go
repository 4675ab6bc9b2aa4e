package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// LevelController reads and changes the process log level.
// *logging.Logger satisfies it.
type LevelController interface {
	Level() string
	SetLevel(level string) error
}

// LogLevelHandler handles runtime log level adjustment.
type LogLevelHandler struct {
	level  LevelController
	logger *zap.Logger
}

// NewLogLevelHandler creates a handler for log level management.
func NewLogLevelHandler(level LevelController, logger *zap.Logger) *LogLevelHandler {
	return &LogLevelHandler{
		level:  level,
		logger: logger,
	}
}

// LogLevelResponse is the response for log level queries.
type LogLevelResponse struct {
	Level           string   `json:"level"`
	AvailableLevels []string `json:"available_levels,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// LogLevelRequest is the request body for changing log level.
type LogLevelRequest struct {
	Level string `json:"level"`
}

var availableLevels = []string{"debug", "info", "warn", "error"}

// GetLevel handles GET requests to return current log level.
func (h *LogLevelHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.logger, http.StatusOK, LogLevelResponse{
		Level:           h.level.Level(),
		AvailableLevels: availableLevels,
	})
}

// SetLevel handles PUT/POST requests to change log level. The level is read
// from the query string, then the JSON body.
func (h *LogLevelHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	levelStr := r.URL.Query().Get("level")

	if levelStr == "" && r.Body != nil {
		var req LogLevelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			levelStr = req.Level
		}
	}

	if levelStr == "" {
		writeJSON(w, r, h.logger, http.StatusBadRequest, map[string]string{
			"error": "level parameter is required",
		})
		return
	}

	previous := h.level.Level()
	if err := h.level.SetLevel(levelStr); err != nil {
		writeJSON(w, r, h.logger, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	current := h.level.Level()
	writeJSON(w, r, h.logger, http.StatusOK, LogLevelResponse{
		Level:   current,
		Message: fmt.Sprintf("log level changed from %s to %s", previous, current),
	})
}

// ServeHTTP implements http.Handler for the log level endpoint.
func (h *LogLevelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetLevel(w, r)
	case http.MethodPut, http.MethodPost:
		h.SetLevel(w, r)
	default:
		writeJSON(w, r, h.logger, http.StatusMethodNotAllowed, map[string]string{
			"error": "method not allowed",
		})
	}
}
