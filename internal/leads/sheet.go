package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/config"
	"github.com/jkindrix/quotebot/internal/domain"
	apperrors "github.com/jkindrix/quotebot/internal/errors"
	"github.com/jkindrix/quotebot/internal/sanitize"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// VerifyRecord is the fixed row posted by Verify to check the endpoint.
var VerifyRecord = domain.LeadRecord{
	SessionID:  "test-session",
	Email:      "test-email",
	Service:    "test-service",
	Platform:   "test-platform",
	Features:   []string{"test-feature"},
	LeadStatus: "Test",
	Issue:      "Test issue",
}

// SheetSink posts lead records as JSON to a spreadsheet web-app endpoint.
type SheetSink struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSheetSink creates a sink for cfg.URL. An empty URL yields a sink whose
// Record always fails with ErrSinkNotConfigured.
func NewSheetSink(cfg *config.SheetConfig, logger *zap.Logger) *SheetSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SheetSink{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Name implements Named.
func (s *SheetSink) Name() string { return "sheet" }

// Configured reports whether an endpoint URL is set.
func (s *SheetSink) Configured() bool { return s.url != "" }

// Record posts rec. Any non-2xx status is an error carrying an excerpt of the
// response body.
func (s *SheetSink) Record(ctx context.Context, rec domain.LeadRecord) error {
	if s.url == "" {
		return apperrors.ErrSinkNotConfigured
	}

	body, err := json.Marshal(rec.Normalize())
	if err != nil {
		return fmt.Errorf("failed to marshal lead record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.ExternalServiceError("lead sheet", err)
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.ExternalServiceError("lead sheet",
			fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt)))
	}

	s.logger.Debug("lead recorded",
		zap.String("lead_status", rec.LeadStatus),
		zap.String("email", sanitize.Email(rec.Email)),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// Verify posts VerifyRecord to check that the endpoint accepts writes.
func (s *SheetSink) Verify(ctx context.Context) error {
	if err := s.Record(ctx, VerifyRecord); err != nil {
		return fmt.Errorf("lead sheet verification failed: %w", err)
	}
	s.logger.Info("lead sheet connection verified")
	return nil
}
