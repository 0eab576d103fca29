package model

import (
	"encoding/json"
	"fmt"
)

// Trigger classifies reports and queries.
type Trigger string

const (
	// TriggerConditional runs whenever its queries return data.
	TriggerConditional Trigger = "CONDITIONAL"
	// TriggerCalendar runs on a date rule. Not evaluated yet.
	TriggerCalendar Trigger = "CALENDAR"
)

// Report is a row of the report table.
type Report struct {
	Code    string
	Name    string
	Trigger Trigger
	Active  bool
	// Email is the raw JSON email settings column; see ParseEmail.
	Email []byte
}

// EmailSettings is the decoded email column of a report.
type EmailSettings struct {
	From      string   `json:"from_email"`
	To        []string `json:"to_email"`
	Cc        []string `json:"cc_email"`
	MsgLeader string   `json:"msg_leader"`
	MsgSig    string   `json:"msg_sig"`
}

// ParseEmail decodes the report's email settings. A sender address is required.
func (r Report) ParseEmail() (EmailSettings, error) {
	var s EmailSettings
	if err := json.Unmarshal(r.Email, &s); err != nil {
		return EmailSettings{}, fmt.Errorf("report %s: invalid email settings: %w", r.Code, err)
	}
	if s.From == "" {
		return EmailSettings{}, fmt.Errorf("report %s: email settings missing from_email", r.Code)
	}
	return s, nil
}

// Query is a row of the query table.
type Query struct {
	ReportCode  string
	Sequence    int
	Type        Trigger
	Description string
	SQL         string
}
