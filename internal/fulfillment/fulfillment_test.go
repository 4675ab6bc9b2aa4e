package fulfillment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jkindrix/quotebot/internal/ai"
	"github.com/jkindrix/quotebot/internal/domain"
	apperrors "github.com/jkindrix/quotebot/internal/errors"
	"github.com/jkindrix/quotebot/internal/session"
	"github.com/jkindrix/quotebot/internal/webhook"
)

type fakeCompleter struct {
	text    string
	err     error
	prompts []ai.Prompt
}

func (f *fakeCompleter) Complete(_ context.Context, p ai.Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.text, f.err
}

type fakeSink struct {
	err     error
	records []domain.LeadRecord
}

func (f *fakeSink) Record(_ context.Context, rec domain.LeadRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type fakeRecorder struct {
	intents []string
	quotes  []string
}

func (f *fakeRecorder) RecordIntent(intent, outcome string, _ time.Duration) {
	f.intents = append(f.intents, intent+":"+outcome)
}

func (f *fakeRecorder) RecordQuote(source string) {
	f.quotes = append(f.quotes, source)
}

type harness struct {
	d         *Dispatcher
	store     *session.Store
	completer *fakeCompleter
	sink      *fakeSink
	recorder  *fakeRecorder
	logs      *observer.ObservedLogs
}

func newHarness() *harness {
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		store:     session.NewStore(session.Config{}, zap.NewNop()),
		completer: &fakeCompleter{text: "A custom build runs about €900."},
		sink:      &fakeSink{},
		recorder:  &fakeRecorder{},
		logs:      logs,
	}
	h.d = NewDispatcher(Config{
		Completer: h.completer,
		Sink:      h.sink,
		Recorder:  h.recorder,
	}, zap.New(core))
	return h
}

// say dispatches one event and records the endpoint turn the way the HTTP
// handler does.
func (h *harness) say(t *testing.T, intent, query string, params webhook.Params) (Result, bool) {
	t.Helper()
	req := &webhook.Request{SessionID: "s1", Intent: intent, Query: query, Params: params}

	var res Result
	var ok bool
	err := h.store.Do(req.SessionID, func(sess *session.Session) error {
		res, ok = h.d.Dispatch(context.Background(), sess, req)
		turn := domain.Turn{Intent: intent, UserQuery: query}
		if res.Reply != nil {
			turn.Response = res.Reply.Text
		}
		sess.Append(turn)
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return res, ok
}

func (h *harness) history(t *testing.T) []domain.Turn {
	t.Helper()
	var out []domain.Turn
	_ = h.store.Do("s1", func(sess *session.Session) error {
		out = sess.History()
		return nil
	})
	return out
}

func assertReply(t *testing.T, res Result, text string, options ...string) {
	t.Helper()
	if res.Reply == nil {
		t.Fatal("expected a reply")
	}
	if res.Reply.Text != text {
		t.Errorf("reply text = %q\nwant          %q", res.Reply.Text, text)
	}
	if strings.Join(res.Reply.Options, "|") != strings.Join(options, "|") {
		t.Errorf("options = %v, want %v", res.Reply.Options, options)
	}
}

func TestDispatch_Welcome(t *testing.T) {
	h := newHarness()

	res, ok := h.say(t, "Default Welcome Intent", "hi", nil)
	if !ok {
		t.Fatal("welcome intent not handled")
	}
	assertReply(t, res, "hi this dialogflow response",
		"Dr. Issa Nagari", "Prof. Amir", "Dr. Jhon patrick", "Sara kirchoff", "location")
	if res.Lead != nil {
		t.Error("welcome should not produce a lead")
	}
}

func TestDispatch_ReportIssueIsSilent(t *testing.T) {
	h := newHarness()

	res, ok := h.say(t, "ReportIssue", "I'm facing an issue", nil)
	if !ok {
		t.Fatal("ReportIssue should be a registered intent")
	}
	if res.Reply != nil || res.Lead != nil {
		t.Errorf("expected empty result, got %+v", res)
	}
	if got := h.recorder.intents; len(got) != 1 || got[0] != "ReportIssue:silent" {
		t.Errorf("recorded intents = %v", got)
	}
}

func TestDispatch_UnknownIntent(t *testing.T) {
	h := newHarness()

	res, ok := h.say(t, "Book A Demo", "book a demo", nil)
	if ok {
		t.Error("unknown intent reported as handled")
	}
	if res.Reply != nil {
		t.Error("unknown intent produced a reply")
	}
	if len(h.completer.prompts) != 0 || len(h.sink.records) != 0 {
		t.Error("unknown intent must not call collaborators")
	}
	if got := h.recorder.intents; len(got) != 1 || got[0] != "unknown:unhandled" {
		t.Errorf("recorded intents = %v", got)
	}
	if h.logs.FilterMessage("no handler for intent").Len() != 1 {
		t.Error("expected a warning for the unknown intent")
	}
}

func TestDispatch_IssueDetails(t *testing.T) {
	h := newHarness()

	res, _ := h.say(t, "ReportIssue - Details", "the bot returns a 500 error", nil)
	assertReply(t, res,
		"Thank you for reporting the issue. Our team will look into the server error with your chatbot and get back to you. Would you like to provide an email for follow-up?",
		"Yes, provide email", "No, thanks")

	hist := h.history(t)
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].Intent != "ReportIssue - Details" || hist[0].Issue != "the bot returns a 500 error" {
		t.Errorf("unexpected issue turn %+v", hist[0])
	}
}

func TestDispatch_CatalogQuote(t *testing.T) {
	tests := []struct {
		name   string
		params webhook.Params
		want   string
	}{
		{
			name: "features and platform",
			params: webhook.Params{
				"service":  "Chatbot",
				"platform": "WhatsApp",
				"features": []interface{}{"crm"},
				"quantity": float64(2),
			},
			want: "The quote for 2 chatbot(s) is €1200. Deployable on whatsapp. Features: crm: €200. Would you like to provide an email to discuss this quote further?",
		},
		{
			name:   "base only",
			params: webhook.Params{"service": "FAQ Bot"},
			want:   "The quote for 1 faq bot(s) is €300. Would you like to provide an email to discuss this quote further?",
		},
		{
			name: "unknown features dropped",
			params: webhook.Params{
				"service":  "automation",
				"features": []interface{}{"voice", "googleSheets", "crm"},
				"quantity": "1",
			},
			want: "The quote for 1 automation(s) is €900. Features: googleSheets: €100, crm: €200. Would you like to provide an email to discuss this quote further?",
		},
		{
			name: "every offered feature is unknown",
			params: webhook.Params{
				"service":  "voice assistant",
				"platform": "Web",
				"features": []interface{}{"voice"},
			},
			want: "The quote for 1 voice assistant(s) is €800. Deployable on web. Would you like to provide an email to discuss this quote further?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			res, ok := h.say(t, "QuoteSimulator", "quote please", tt.params)
			if !ok {
				t.Fatal("QuoteSimulator not handled")
			}
			assertReply(t, res, tt.want, "Yes, provide email", "No, just info")
			if len(h.completer.prompts) != 0 {
				t.Error("catalog quote must not call the completion API")
			}
			if len(h.recorder.quotes) != 1 || h.recorder.quotes[0] != "catalog" {
				t.Errorf("quote sources = %v", h.recorder.quotes)
			}
		})
	}
}

func TestDispatch_QuoteQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity interface{}
		want     string
	}{
		{"missing", nil, "The quote for 1 chatbot(s) is €500."},
		{"zero", "0", "The quote for 1 chatbot(s) is €500."},
		{"negative", float64(-2), "The quote for 1 chatbot(s) is €500."},
		{"word", "several", "The quote for 1 chatbot(s) is €500."},
		{"leading digits", "3 bots", "The quote for 3 chatbot(s) is €1500."},
		{"fractional", float64(2.7), "The quote for 2 chatbot(s) is €1000."},
		{"float beyond exact range", float64(1e17), "The quote for 1 chatbot(s) is €500."},
		{"float beyond int range", float64(1e300), "The quote for 1 chatbot(s) is €500."},
		{"huge string", "99999999999999999", "The quote for 1000000 chatbot(s) is €500000000."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			params := webhook.Params{"service": "chatbot"}
			if tt.quantity != nil {
				params["quantity"] = tt.quantity
			}
			res, _ := h.say(t, "QuoteSimulator", "", params)
			if res.Reply == nil || !strings.HasPrefix(res.Reply.Text, tt.want) {
				t.Errorf("reply = %+v, want prefix %q", res.Reply, tt.want)
			}
		})
	}
}

func TestDispatch_QuoteRecordsSelectionBeforeQuoting(t *testing.T) {
	h := newHarness()

	h.say(t, "QuoteSimulator", "quote", webhook.Params{
		"service":  "Chatbot",
		"platform": "Web",
		"features": []interface{}{"crm", "voice"},
	})

	hist := h.history(t)
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	sel := hist[0]
	if sel.Intent != "QuoteSimulator" || sel.Service != "chatbot" || sel.Platform != "web" {
		t.Errorf("unexpected selection turn %+v", sel)
	}
	if strings.Join(sel.Features, ",") != "crm,voice" {
		t.Errorf("features = %v", sel.Features)
	}
	if hist[1].UserQuery != "quote" || hist[1].Response == "" {
		t.Errorf("unexpected endpoint turn %+v", hist[1])
	}
}

func TestDispatch_CustomQuote(t *testing.T) {
	h := newHarness()

	res, _ := h.say(t, "QuoteSimulator", "quote for a website", webhook.Params{
		"service":  "Website",
		"features": []interface{}{"seo", "blog"},
	})

	assertReply(t, res,
		"A custom build runs about €900. Would you like to provide an email to discuss this quote further?",
		"Yes, provide email", "No, just info")

	if len(h.completer.prompts) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(h.completer.prompts))
	}
	p := h.completer.prompts[0]
	if p.Purpose != "quote" {
		t.Errorf("purpose = %q", p.Purpose)
	}
	if p.System != pricingSystemPrompt {
		t.Errorf("system prompt = %q", p.System)
	}
	want := "Generate a price quote for a custom website with features: seo, blog on platform: unspecified. Provide a brief explanation."
	if p.User != want {
		t.Errorf("user prompt = %q\nwant          %q", p.User, want)
	}
	if len(h.recorder.quotes) != 1 || h.recorder.quotes[0] != "completion" {
		t.Errorf("quote sources = %v", h.recorder.quotes)
	}
}

func TestDispatch_CustomQuoteWithPlatform(t *testing.T) {
	h := newHarness()

	h.say(t, "QuoteSimulator", "", webhook.Params{"service": "kiosk", "platform": "Android"})

	want := "Generate a price quote for a custom kiosk with features:  on platform: android. Provide a brief explanation."
	if got := h.completer.prompts[0].User; got != want {
		t.Errorf("user prompt = %q, want %q", got, want)
	}
}

func TestDispatch_CustomQuoteFailure(t *testing.T) {
	h := newHarness()
	h.completer.err = apperrors.ExternalServiceError("openai", errors.New("status code: 500"))

	res, _ := h.say(t, "QuoteSimulator", "", webhook.Params{"service": "website"})

	assertReply(t, res, "Sorry, I couldn't generate a quote. Please try again.", "Try again")
	if h.logs.FilterMessage("custom quote generation failed").Len() != 1 {
		t.Error("expected completion failure to be logged")
	}
	if len(h.recorder.quotes) != 1 || h.recorder.quotes[0] != "failed" {
		t.Errorf("quote sources = %v", h.recorder.quotes)
	}
}

func TestDispatch_CollectLeadAfterQuote(t *testing.T) {
	h := newHarness()

	h.say(t, "QuoteSimulator", "quote", webhook.Params{
		"service":  "chatbot",
		"platform": "web",
		"features": []interface{}{"crm"},
		"quantity": float64(2),
	})
	res, ok := h.say(t, "QuoteSimulator - CollectLead", "jane@example.com", webhook.Params{"email": "jane@example.com"})
	if !ok {
		t.Fatal("CollectLead not handled")
	}

	assertReply(t, res,
		"Thank you! We'll follow up at jane@example.com regarding a chatbot. Anything else we can help with?",
		"Yes, more help", "No, done")

	if res.Lead == nil {
		t.Fatal("expected a lead record")
	}
	want := domain.LeadRecord{
		SessionID:  "s1",
		Email:      "jane@example.com",
		Service:    "chatbot",
		Platform:   "web",
		Features:   []string{"crm"},
		LeadStatus: "Potential Lead",
	}
	assertLead(t, *res.Lead, want)

	if len(h.sink.records) != 1 {
		t.Fatalf("sink received %d records, want 1", len(h.sink.records))
	}
	assertLead(t, h.sink.records[0], want)
}

func TestDispatch_CollectLeadAfterIssue(t *testing.T) {
	h := newHarness()

	h.say(t, "ReportIssue - Details", "login page is broken", nil)
	res, _ := h.say(t, "QuoteSimulator - CollectLead", "", webhook.Params{"email": "ops@example.com"})

	assertReply(t, res,
		"Thank you! We'll follow up at ops@example.com regarding your issue: login page is broken. Anything else we can help with?",
		"Yes, more help", "No, done")
	assertLead(t, *res.Lead, domain.LeadRecord{
		SessionID:  "s1",
		Email:      "ops@example.com",
		Features:   []string{},
		LeadStatus: "Issue Reported",
		Issue:      "login page is broken",
	})
}

func TestDispatch_CollectLeadWithoutContext(t *testing.T) {
	h := newHarness()

	res, _ := h.say(t, "QuoteSimulator - CollectLead", "", webhook.Params{"email": "a@b.co"})

	assertReply(t, res,
		"Thank you! We'll follow up at a@b.co to discuss your needs. Anything else we can help with?",
		"Yes, more help", "No, done")
	if res.Lead.Features == nil {
		t.Error("features must be a non-nil slice")
	}
	assertLead(t, *res.Lead, domain.LeadRecord{
		SessionID:  "s1",
		Email:      "a@b.co",
		Features:   []string{},
		LeadStatus: "Potential Lead",
	})
}

func TestDispatch_CollectLeadContextIsPositional(t *testing.T) {
	h := newHarness()

	h.say(t, "QuoteSimulator", "quote", webhook.Params{"service": "chatbot"})
	h.say(t, "Default Welcome Intent", "hello again", nil)
	res, _ := h.say(t, "QuoteSimulator - CollectLead", "", webhook.Params{"email": "a@b.co"})

	// Two steps back is the endpoint turn of the quote, which carries the
	// intent name but not the selection.
	assertReply(t, res,
		"Thank you! We'll follow up at a@b.co regarding a service. Anything else we can help with?",
		"Yes, more help", "No, done")
	if res.Lead.Service != "" || res.Lead.LeadStatus != "Potential Lead" {
		t.Errorf("unexpected lead %+v", res.Lead)
	}
}

func TestDispatch_LeadSinkFailureKeepsReply(t *testing.T) {
	h := newHarness()
	h.sink.err = errors.New("sheet returned 502")

	res, _ := h.say(t, "QuoteSimulator - CollectLead", "", webhook.Params{"email": "jane@example.com"})

	if res.Reply == nil {
		t.Fatal("reply must survive a sink failure")
	}
	entries := h.logs.FilterMessage("failed to record lead").All()
	if len(entries) != 1 {
		t.Fatalf("expected one sink failure log, got %d", len(entries))
	}
	if email := entries[0].ContextMap()["email"]; email != "ja***@example.com" {
		t.Errorf("logged email = %v, want masked", email)
	}
}

func TestDispatch_FallbackSuccess(t *testing.T) {
	h := newHarness()
	h.completer.text = "We build custom chatbots and voice assistants."

	res, _ := h.say(t, "Default Fallback Intent", "what do you do?", nil)

	assertReply(t, res, "We build custom chatbots and voice assistants.", "Ask another question")
	p := h.completer.prompts[0]
	if p.Purpose != "fallback" || p.System != assistantSystemPrompt || p.User != "what do you do?" {
		t.Errorf("unexpected prompt %+v", p)
	}
}

func TestDispatch_FallbackFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "external service",
			err:  apperrors.ExternalServiceError("openai", errors.New("status code: 429")),
			want: "Sorry, I couldn't process your request due to an error: openai service error: status code: 429. Please try again or contact support.",
		},
		{
			name: "circuit open",
			err:  apperrors.Wrap(apperrors.ErrCircuitOpen, "ai.Client.Complete", apperrors.CodeCircuitOpen, "completion service temporarily unavailable"),
			want: "Sorry, I couldn't process your request due to an error: completion service temporarily unavailable. Please try again or contact support.",
		},
		{
			name: "plain error",
			err:  errors.New("dial tcp: connection refused"),
			want: "Sorry, I couldn't process your request due to an error: dial tcp: connection refused. Please try again or contact support.",
		},
		{
			name: "empty message",
			err:  errors.New(""),
			want: "Sorry, I couldn't process your request due to an error: Unknown error. Please try again or contact support.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.completer.err = tt.err

			res, _ := h.say(t, "Default Fallback Intent", "hello?", nil)
			assertReply(t, res, tt.want, "Try again", "Contact support")
		})
	}
}

func TestDispatch_FallbackMasksSecrets(t *testing.T) {
	h := newHarness()
	h.completer.err = apperrors.ExternalServiceError("openai",
		errors.New("Incorrect API key provided: sk-proj-abcdefghijklmnopqrstuvwx"))

	res, _ := h.say(t, "Default Fallback Intent", "hello?", nil)
	if strings.Contains(res.Reply.Text, "abcdefghijklmnop") {
		t.Errorf("reply leaked the API key: %q", res.Reply.Text)
	}
}

func TestDispatch_NoCompleter(t *testing.T) {
	d := NewDispatcher(Config{}, zap.NewNop())
	store := session.NewStore(session.Config{}, zap.NewNop())

	var res Result
	_ = store.Do("s", func(sess *session.Session) error {
		res, _ = d.Dispatch(context.Background(), sess, &webhook.Request{Intent: "Default Fallback Intent", Query: "hi"})
		return nil
	})
	if res.Reply == nil || !strings.HasPrefix(res.Reply.Text, "Sorry, I couldn't process your request") {
		t.Errorf("unexpected reply %+v", res.Reply)
	}
}

func TestReplyOptionsAreCopies(t *testing.T) {
	h := newHarness()

	res, _ := h.say(t, "Default Welcome Intent", "hi", nil)
	res.Reply.Options[0] = "changed"

	again, _ := h.say(t, "Default Welcome Intent", "hi", nil)
	if again.Reply.Options[0] != "Dr. Issa Nagari" {
		t.Error("reply options share backing storage across requests")
	}
}

func assertLead(t *testing.T, got, want domain.LeadRecord) {
	t.Helper()
	if got.SessionID != want.SessionID || got.Email != want.Email || got.Service != want.Service ||
		got.Platform != want.Platform || got.LeadStatus != want.LeadStatus || got.Issue != want.Issue {
		t.Errorf("lead = %+v, want %+v", got, want)
	}
	if got.Features == nil {
		t.Error("lead features must be non-nil")
	}
	if strings.Join(got.Features, ",") != strings.Join(want.Features, ",") {
		t.Errorf("lead features = %v, want %v", got.Features, want.Features)
	}
}
