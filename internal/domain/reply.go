package domain

// Reply is what a handler says back to the user: a text and an ordered list
// of quick-reply option labels.
type Reply struct {
	Text    string
	Options []string
}

// NewReply builds a reply with the given quick-reply options.
func NewReply(text string, options ...string) *Reply {
	return &Reply{Text: text, Options: options}
}
