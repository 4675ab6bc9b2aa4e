package domain

// Lead statuses recorded in the lead log.
const (
	LeadStatusPotential     = "Potential Lead"
	LeadStatusIssueReported = "Issue Reported"
)

// LeadRecord is one row of the lead log. Field names on the wire are fixed
// by the spreadsheet endpoint.
type LeadRecord struct {
	SessionID  string   `json:"sessionId"`
	Email      string   `json:"email"`
	Service    string   `json:"service"`
	Platform   string   `json:"platform"`
	Features   []string `json:"features"`
	LeadStatus string   `json:"leadStatus"`
	Issue      string   `json:"issue"`
}

// Normalize makes Features a non-nil slice so it always encodes as a JSON array.
func (r LeadRecord) Normalize() LeadRecord {
	if r.Features == nil {
		r.Features = []string{}
	}
	return r
}
