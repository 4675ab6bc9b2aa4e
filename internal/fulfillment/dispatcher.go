// Package fulfillment routes webhook events to per-intent handlers and
// delivers the lead records they produce.
package fulfillment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/ai"
	"github.com/jkindrix/quotebot/internal/clock"
	"github.com/jkindrix/quotebot/internal/domain"
	"github.com/jkindrix/quotebot/internal/leads"
	"github.com/jkindrix/quotebot/internal/sanitize"
	"github.com/jkindrix/quotebot/internal/session"
	"github.com/jkindrix/quotebot/internal/webhook"
)

// Completer produces chat completions. *ai.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, p ai.Prompt) (string, error)
}

// Recorder receives fulfillment metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordIntent(intent, outcome string, duration time.Duration)
	RecordQuote(source string)
}

type nopRecorder struct{}

func (nopRecorder) RecordIntent(string, string, time.Duration) {}
func (nopRecorder) RecordQuote(string)                         {}

// Intent outcome labels.
const (
	outcomeReplied   = "replied"
	outcomeSilent    = "silent"
	outcomeUnhandled = "unhandled"
)

// Result is what a handler produced. Either field may be nil.
type Result struct {
	Reply *domain.Reply
	Lead  *domain.LeadRecord
}

// Handler serves one intent. It runs with exclusive access to sess.
type Handler func(ctx context.Context, sess *session.Session, req *webhook.Request) Result

// Config holds the dispatcher's collaborators. Catalog defaults to the
// standard price list; Sink, Recorder and Clock may be nil.
type Config struct {
	Catalog   *domain.Catalog
	Completer Completer
	Sink      leads.Sink
	Recorder  Recorder
	Clock     clock.Clock
}

// Dispatcher maps intents to handlers.
type Dispatcher struct {
	handlers  map[domain.Intent]Handler
	catalog   *domain.Catalog
	completer Completer
	sink      leads.Sink
	recorder  Recorder
	clock     clock.Clock
	sanitizer *sanitize.Sanitizer
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher with all six intent handlers registered.
func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		catalog:   cfg.Catalog,
		completer: cfg.Completer,
		sink:      cfg.Sink,
		recorder:  cfg.Recorder,
		clock:     cfg.Clock,
		sanitizer: sanitize.NewDefault(),
		logger:    logger,
	}
	if d.catalog == nil {
		d.catalog = domain.DefaultCatalog()
	}
	if d.recorder == nil {
		d.recorder = nopRecorder{}
	}
	if d.clock == nil {
		d.clock = clock.New()
	}

	d.handlers = map[domain.Intent]Handler{
		domain.IntentWelcome:            d.handleWelcome,
		domain.IntentFallback:           d.handleFallback,
		domain.IntentQuoteSimulator:     d.handleQuote,
		domain.IntentCollectLead:        d.handleCollectLead,
		domain.IntentReportIssue:        d.handleReportIssue,
		domain.IntentReportIssueDetails: d.handleIssueDetails,
	}
	return d
}

// Dispatch runs the handler registered for req.Intent. It reports false,
// without running anything, when the intent is not registered. A lead
// produced by the handler is delivered to the sink before Dispatch returns;
// delivery failures are logged and do not affect the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, req *webhook.Request) (Result, bool) {
	intent, ok := domain.ParseIntent(req.Intent)
	if !ok {
		d.recorder.RecordIntent(intent.String(), outcomeUnhandled, 0)
		d.logger.Warn("no handler for intent",
			zap.String("intent", req.Intent),
			zap.String("session_id", sess.ID()),
		)
		return Result{}, false
	}

	start := d.clock.Now()
	d.logger.Debug("dispatching intent",
		zap.String("intent", intent.String()),
		zap.String("session_id", sess.ID()),
	)

	res := d.handlers[intent](ctx, sess, req)

	if res.Lead != nil {
		d.deliver(ctx, *res.Lead)
	}

	outcome := outcomeSilent
	if res.Reply != nil {
		outcome = outcomeReplied
	}
	d.recorder.RecordIntent(intent.String(), outcome, d.clock.Since(start))
	return res, true
}

func (d *Dispatcher) deliver(ctx context.Context, lead domain.LeadRecord) {
	if d.sink == nil {
		return
	}
	if err := d.sink.Record(ctx, lead); err != nil {
		d.logger.Error("failed to record lead",
			zap.String("session_id", lead.SessionID),
			zap.String("email", sanitize.Email(lead.Email)),
			zap.String("lead_status", lead.LeadStatus),
			zap.String("error", d.sanitizer.Error(err)),
		)
		return
	}
	d.logger.Info("lead recorded",
		zap.String("session_id", lead.SessionID),
		zap.String("lead_status", lead.LeadStatus),
	)
}
