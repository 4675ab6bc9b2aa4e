package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/ai"
	"github.com/jkindrix/quotebot/internal/domain"
	apperrors "github.com/jkindrix/quotebot/internal/errors"
	"github.com/jkindrix/quotebot/internal/session"
	"github.com/jkindrix/quotebot/internal/webhook"
)

// Completion purposes, used as metrics labels.
const (
	purposeQuote    = "quote"
	purposeFallback = "fallback"
)

// Quote sources, used as metrics labels.
const (
	quoteFromCatalog    = "catalog"
	quoteFromCompletion = "completion"
	quoteFailed         = "failed"
)

func reply(text string, options []string) Result {
	return Result{Reply: domain.NewReply(text, append([]string(nil), options...)...)}
}

func (d *Dispatcher) handleWelcome(_ context.Context, _ *session.Session, _ *webhook.Request) Result {
	return reply(greetingText, greetingOptions)
}

// handleReportIssue is registered so the agent's own static reply is used.
func (d *Dispatcher) handleReportIssue(_ context.Context, _ *session.Session, _ *webhook.Request) Result {
	return Result{}
}

func (d *Dispatcher) handleIssueDetails(_ context.Context, sess *session.Session, req *webhook.Request) Result {
	sess.Append(domain.Turn{
		Intent: domain.IntentNameReportIssueDetails,
		Issue:  req.Query,
		At:     d.clock.Now(),
	})
	d.logger.Info("issue reported",
		zap.String("session_id", sess.ID()),
		zap.String("issue", d.sanitizer.String(req.Query)),
	)
	return reply(issueReceivedText, issueOptions)
}

func (d *Dispatcher) handleQuote(ctx context.Context, sess *session.Session, req *webhook.Request) Result {
	service := strings.ToLower(req.Params.String("service"))
	platform := strings.ToLower(req.Params.String("platform"))
	features := req.Params.Strings("features")
	if features == nil {
		features = []string{}
	}
	quantity := quantityParam(req.Params)

	sess.Append(domain.Turn{
		Intent:   domain.IntentNameQuoteSimulator,
		Service:  service,
		Platform: platform,
		Features: features,
		At:       d.clock.Now(),
	})

	if q, ok := d.catalog.Quote(service, quantity, features); ok {
		d.recorder.RecordQuote(quoteFromCatalog)
		return reply(formatQuote(q, platform), quoteOptions)
	}

	if platform == "" {
		platform = unspecifiedPlatform
	}
	text, err := d.complete(ctx, ai.Prompt{
		Purpose: purposeQuote,
		System:  pricingSystemPrompt,
		User:    fmt.Sprintf(customQuotePrompt, service, strings.Join(features, ", "), platform),
	})
	if err != nil {
		d.recorder.RecordQuote(quoteFailed)
		d.logger.Error("custom quote generation failed",
			zap.String("session_id", sess.ID()),
			zap.String("service", service),
			zap.String("error", d.sanitizer.Error(err)),
		)
		return reply(quoteFailedText, retryOptions)
	}

	d.recorder.RecordQuote(quoteFromCompletion)
	return reply(text+quoteEmailPrompt, quoteOptions)
}

// formatQuote renders a catalog quote. The platform and feature sentences are
// omitted when empty.
func formatQuote(q domain.Quote, platform string) string {
	var b strings.Builder
	fmt.Fprintf(&b, catalogQuoteText, q.Quantity, q.Service, q.Total)
	if platform != "" {
		fmt.Fprintf(&b, quotePlatformText, platform)
	}
	if len(q.Charges) > 0 {
		lines := make([]string, len(q.Charges))
		for i, c := range q.Charges {
			lines[i] = c.String()
		}
		fmt.Fprintf(&b, quoteFeaturesText, strings.Join(lines, ", "))
	}
	b.WriteString(quoteEmailPrompt)
	return b.String()
}

// quantityParam reads the quantity parameter, defaulting to 1 when it is
// missing, unreadable or not positive.
func quantityParam(p webhook.Params) int {
	n, ok := p.Int("quantity")
	if !ok || n <= 0 {
		return 1
	}
	return n
}

func (d *Dispatcher) handleCollectLead(_ context.Context, sess *session.Session, req *webhook.Request) Result {
	email := req.Params.String("email")

	lead := domain.LeadRecord{
		SessionID:  sess.ID(),
		Email:      email,
		Features:   []string{},
		LeadStatus: domain.LeadStatusPotential,
	}

	text := fmt.Sprintf(leadGenericText, email)
	if prev, ok := sess.LeadContext(); ok {
		switch prev.Intent {
		case domain.IntentNameQuoteSimulator:
			lead.Service = prev.Service
			lead.Platform = prev.Platform
			if prev.Features != nil {
				lead.Features = prev.Features
			}
			service := prev.Service
			if service == "" {
				service = defaultService
			}
			text = fmt.Sprintf(leadQuoteText, email, service)
		case domain.IntentNameReportIssueDetails:
			lead.Issue = prev.Issue
			lead.LeadStatus = domain.LeadStatusIssueReported
			text = fmt.Sprintf(leadIssueText, email, prev.Issue)
		}
	}

	res := reply(text, leadOptions)
	res.Lead = &lead
	return res
}

func (d *Dispatcher) handleFallback(ctx context.Context, sess *session.Session, req *webhook.Request) Result {
	text, err := d.complete(ctx, ai.Prompt{
		Purpose: purposeFallback,
		System:  assistantSystemPrompt,
		User:    req.Query,
	})
	if err != nil {
		d.logger.Error("fallback completion failed",
			zap.String("session_id", sess.ID()),
			zap.String("error", d.sanitizer.Error(err)),
		)
		return reply(fmt.Sprintf(fallbackFailedText, d.userMessage(err)), supportOptions)
	}
	return reply(text, answerOptions)
}

func (d *Dispatcher) complete(ctx context.Context, p ai.Prompt) (string, error) {
	if d.completer == nil {
		return "", apperrors.New(apperrors.CodeConfig, "completion client not configured")
	}
	return d.completer.Complete(ctx, p)
}

// userMessage renders err for the end user with credentials and contact
// details masked. Operation prefixes are dropped.
func (d *Dispatcher) userMessage(err error) string {
	msg := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message
		var inner *apperrors.Error
		if appErr.Err != nil && !errors.As(appErr.Err, &inner) {
			msg += ": " + appErr.Err.Error()
		}
	}
	msg = strings.TrimSpace(d.sanitizer.String(msg))
	if msg == "" {
		return unknownErrorText
	}
	return msg
}
