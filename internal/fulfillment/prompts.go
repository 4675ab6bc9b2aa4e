package fulfillment

// Reply texts and quick-reply options. Wording is shown to end users verbatim.
const (
	greetingText = "hi this dialogflow response"

	issueReceivedText = "Thank you for reporting the issue. Our team will look into the server error with your chatbot and get back to you. Would you like to provide an email for follow-up?"

	catalogQuoteText    = "The quote for %d %s(s) is €%d."
	quotePlatformText   = " Deployable on %s."
	quoteFeaturesText   = " Features: %s."
	quoteEmailPrompt    = " Would you like to provide an email to discuss this quote further?"
	customQuotePrompt   = "Generate a price quote for a custom %s with features: %s on platform: %s. Provide a brief explanation."
	unspecifiedPlatform = "unspecified"
	quoteFailedText     = "Sorry, I couldn't generate a quote. Please try again."

	leadQuoteText   = "Thank you! We'll follow up at %s regarding a %s. Anything else we can help with?"
	leadIssueText   = "Thank you! We'll follow up at %s regarding your issue: %s. Anything else we can help with?"
	leadGenericText = "Thank you! We'll follow up at %s to discuss your needs. Anything else we can help with?"
	defaultService  = "service"

	fallbackFailedText = "Sorry, I couldn't process your request due to an error: %s. Please try again or contact support."
	unknownErrorText   = "Unknown error"
)

// System prompts for the completion API.
const (
	pricingSystemPrompt = "You are a pricing assistant for an AI chatbot agency. Provide realistic quotes based on services like chatbots (€300-800), voice assistants (€800+), and features like CRM integration (€150-250) or multilingual support (€100-200)."

	assistantSystemPrompt = "You are a helpful assistant for an AI chatbot agency. Answer based on services like custom chatbots, voice assistants, and integrations."
)

var (
	greetingOptions = []string{"Dr. Issa Nagari", "Prof. Amir", "Dr. Jhon patrick", "Sara kirchoff", "location"}
	issueOptions    = []string{"Yes, provide email", "No, thanks"}
	quoteOptions    = []string{"Yes, provide email", "No, just info"}
	retryOptions    = []string{"Try again"}
	leadOptions     = []string{"Yes, more help", "No, done"}
	answerOptions   = []string{"Ask another question"}
	supportOptions  = []string{"Try again", "Contact support"}
)
