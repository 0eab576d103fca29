package model

// Notification is one outbound email for a report.
type Notification struct {
	From        string
	To          []string
	Cc          []string
	Subject     string
	HTMLBody    string
	Attachments []string
	// Redirected is set when the dev guard replaced To with From.
	Redirected bool
}
