package domain

import "time"

// Turn is one recorded step of a session. Handlers record the selections they
// consumed; the webhook endpoint records the raw query and the reply text.
// The Intent field holds the display name as received, including names that
// no handler is registered for.
type Turn struct {
	Intent    string    `json:"intent"`
	Issue     string    `json:"issue,omitempty"`
	Service   string    `json:"service,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Features  []string  `json:"features,omitempty"`
	UserQuery string    `json:"user_query,omitempty"`
	Response  string    `json:"response,omitempty"`
	At        time.Time `json:"at"`
}

// Clone returns a deep copy so callers never share the Features backing array.
func (t Turn) Clone() Turn {
	if t.Features != nil {
		t.Features = append([]string(nil), t.Features...)
	}
	return t
}
