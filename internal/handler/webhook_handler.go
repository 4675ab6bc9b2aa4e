package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/clock"
	"github.com/jkindrix/quotebot/internal/domain"
	"github.com/jkindrix/quotebot/internal/fulfillment"
	"github.com/jkindrix/quotebot/internal/middleware"
	"github.com/jkindrix/quotebot/internal/session"
	"github.com/jkindrix/quotebot/internal/webhook"
)

// Dispatcher runs the handler for a fulfillment request.
// *fulfillment.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *session.Session, req *webhook.Request) (fulfillment.Result, bool)
}

// SessionGauge receives the live session count after each request.
type SessionGauge interface {
	SetActiveSessions(count int)
}

// WebhookHandler serves fulfillment requests from the conversational agent.
type WebhookHandler struct {
	store      *session.Store
	dispatcher Dispatcher
	gauge      SessionGauge
	clock      clock.Clock
	logger     *zap.Logger
}

// WebhookHandlerConfig holds configuration for WebhookHandler.
type WebhookHandlerConfig struct {
	Store      *session.Store
	Dispatcher Dispatcher
	Gauge      SessionGauge
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler with all required dependencies.
func NewWebhookHandler(cfg WebhookHandlerConfig) *WebhookHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	if cfg.Store == nil || cfg.Dispatcher == nil {
		panic("session store and dispatcher are required")
	}
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	return &WebhookHandler{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		gauge:      cfg.Gauge,
		clock:      c,
		logger:     cfg.Logger,
	}
}

// RegisterRoutes registers webhook routes on the router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.BodySizeLimiterWebhook()).Post("/webhook", h.HandleWebhook)
}

// HandleWebhook decodes a fulfillment request, runs its intent handler with
// exclusive access to the session, and records the turn. The response is the
// encoded reply, or an empty 200 when the handler produced none.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerWithCorrelation(r.Context(), h.logger)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook body", zap.Error(err))
		internalError(w)
		return
	}

	req, err := webhook.Decode(body)
	if err != nil {
		logger.Error("failed to decode webhook request",
			zap.Error(err),
			zap.Int("body_length", len(body)),
		)
		internalError(w)
		return
	}

	logger = logger.With(
		zap.String("session_id", req.SessionID),
		zap.String("intent", req.Intent),
	)
	logger.Debug("received fulfillment request")

	var res fulfillment.Result
	var handled bool
	_ = h.store.Do(req.SessionID, func(sess *session.Session) error {
		res, handled = h.dispatcher.Dispatch(r.Context(), sess, req)

		turn := domain.Turn{
			Intent:    req.Intent,
			UserQuery: req.Query,
			At:        h.clock.Now(),
		}
		if res.Reply != nil {
			turn.Response = res.Reply.Text
		}
		sess.Append(turn)
		return nil
	})

	if h.gauge != nil {
		h.gauge.SetActiveSessions(h.store.Len())
	}

	if res.Reply == nil {
		logger.Debug("no fulfillment reply", zap.Bool("handled", handled))
		w.WriteHeader(http.StatusOK)
		return
	}

	out, err := webhook.Encode(res.Reply)
	if err != nil {
		logger.Error("failed to encode webhook response", zap.Error(err))
		internalError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		logger.Debug("failed to write webhook response", zap.Error(err))
	}
}
