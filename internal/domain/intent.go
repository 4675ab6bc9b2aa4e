// Package domain holds the conversation, pricing and lead types shared by the
// fulfillment pipeline.
package domain

// Intent identifies which fulfillment handler serves a request.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentWelcome
	IntentFallback
	IntentQuoteSimulator
	IntentCollectLead
	IntentReportIssue
	IntentReportIssueDetails
)

// Display names as configured on the conversational agent. Matching is exact.
const (
	IntentNameWelcome            = "Default Welcome Intent"
	IntentNameFallback           = "Default Fallback Intent"
	IntentNameQuoteSimulator     = "QuoteSimulator"
	IntentNameCollectLead        = "QuoteSimulator - CollectLead"
	IntentNameReportIssue        = "ReportIssue"
	IntentNameReportIssueDetails = "ReportIssue - Details"
)

var intentNames = map[string]Intent{
	IntentNameWelcome:            IntentWelcome,
	IntentNameFallback:           IntentFallback,
	IntentNameQuoteSimulator:     IntentQuoteSimulator,
	IntentNameCollectLead:        IntentCollectLead,
	IntentNameReportIssue:        IntentReportIssue,
	IntentNameReportIssueDetails: IntentReportIssueDetails,
}

// ParseIntent maps an intent display name to its Intent.
// Unregistered names return IntentUnknown and false.
func ParseIntent(name string) (Intent, bool) {
	intent, ok := intentNames[name]
	return intent, ok
}

// String returns the display name of the intent.
func (i Intent) String() string {
	switch i {
	case IntentWelcome:
		return IntentNameWelcome
	case IntentFallback:
		return IntentNameFallback
	case IntentQuoteSimulator:
		return IntentNameQuoteSimulator
	case IntentCollectLead:
		return IntentNameCollectLead
	case IntentReportIssue:
		return IntentNameReportIssue
	case IntentReportIssueDetails:
		return IntentNameReportIssueDetails
	default:
		return "unknown"
	}
}
