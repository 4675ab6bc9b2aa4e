package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/logging"
)

var _ LevelController = (*logging.Logger)(nil)

type fakeLevel struct{ level string }

func (f *fakeLevel) Level() string { return f.level }

func (f *fakeLevel) SetLevel(level string) error {
	parsed, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	f.level = parsed.String()
	return nil
}

func TestLogLevelHandler_GetLevel(t *testing.T) {
	handler := NewLogLevelHandler(&fakeLevel{level: "info"}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/log-level", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp LogLevelResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Level != "info" {
		t.Errorf("expected level = info, got %s", resp.Level)
	}
	if len(resp.AvailableLevels) != 4 {
		t.Errorf("expected 4 available levels, got %d", len(resp.AvailableLevels))
	}
}

func TestLogLevelHandler_SetLevel(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		body      []byte
		wantCode  int
		wantLevel string
	}{
		{"query param", "/debug/log-level?level=debug", nil, http.StatusOK, "debug"},
		{"json body", "/debug/log-level", []byte(`{"level":"warn"}`), http.StatusOK, "warn"},
		{"missing", "/debug/log-level", nil, http.StatusBadRequest, "info"},
		{"invalid", "/debug/log-level?level=verbose", nil, http.StatusBadRequest, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := &fakeLevel{level: "info"}
			handler := NewLogLevelHandler(level, zap.NewNop())

			req := httptest.NewRequest(http.MethodPut, tt.target, bytes.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if level.level != tt.wantLevel {
				t.Errorf("expected level %s, got %s", tt.wantLevel, level.level)
			}
		})
	}
}

func TestLogLevelHandler_MethodNotAllowed(t *testing.T) {
	handler := NewLogLevelHandler(&fakeLevel{level: "info"}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/debug/log-level", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}
