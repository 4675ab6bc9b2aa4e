// Package sanitize masks contact details and credentials before they reach logs.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	phonePattern  = regexp.MustCompile(`\+?[1-9]\d{6,14}`)
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|auth)[=:\s"']*([\w-]{16,})`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[\w.-]+`)
	// OpenAI-style secret keys appear bare in upstream error messages.
	secretKeyPattern = regexp.MustCompile(`\bsk-[\w-]{16,}`)
)

// Sanitizer masks sensitive substrings in free text.
type Sanitizer struct {
	patterns []patternConfig
}

type patternConfig struct {
	pattern     *regexp.Regexp
	replacement func(string) string
	enabled     bool
}

// Config selects which kinds of data are masked.
type Config struct {
	MaskPhones       bool
	MaskEmails       bool
	MaskAPIKeys      bool
	MaskBearerTokens bool
}

// DefaultConfig returns a configuration with all masking enabled.
func DefaultConfig() Config {
	return Config{
		MaskPhones:       true,
		MaskEmails:       true,
		MaskAPIKeys:      true,
		MaskBearerTokens: true,
	}
}

// New creates a new Sanitizer with the given configuration.
func New(cfg Config) *Sanitizer {
	return &Sanitizer{
		patterns: []patternConfig{
			// Emails before phones so digits inside an address survive intact.
			{pattern: emailPattern, replacement: maskEmail, enabled: cfg.MaskEmails},
			{pattern: apiKeyPattern, replacement: maskAPIKey, enabled: cfg.MaskAPIKeys},
			{pattern: secretKeyPattern, replacement: APIKey, enabled: cfg.MaskAPIKeys},
			{pattern: bearerPattern, replacement: maskBearer, enabled: cfg.MaskBearerTokens},
			{pattern: phonePattern, replacement: maskPhone, enabled: cfg.MaskPhones},
		},
	}
}

// NewDefault creates a sanitizer with default configuration.
func NewDefault() *Sanitizer {
	return New(DefaultConfig())
}

// String masks all enabled patterns in input.
func (s *Sanitizer) String(input string) string {
	result := input
	for _, p := range s.patterns {
		if p.enabled {
			result = p.pattern.ReplaceAllStringFunc(result, p.replacement)
		}
	}
	return result
}

// Error sanitizes an error message.
func (s *Sanitizer) Error(err error) string {
	if err == nil {
		return ""
	}
	return s.String(err.Error())
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}

func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "[email]"
	}
	if at <= 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

func maskAPIKey(match string) string {
	parts := apiKeyPattern.FindStringSubmatch(match)
	if len(parts) >= 2 {
		prefix := strings.TrimSuffix(match, parts[len(parts)-1])
		return prefix + "[REDACTED]"
	}
	return "[REDACTED-KEY]"
}

func maskBearer(string) string {
	return "Bearer [REDACTED]"
}

// Email masks an email address, keeping the first two characters and the domain.
func Email(email string) string {
	if email == "" {
		return ""
	}
	return maskEmail(email)
}

// APIKey masks an API key.
func APIKey(key string) string {
	if len(key) <= 8 {
		return "[REDACTED]"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
