package model

import "time"

// ConsentKind classifies how an FPEvent's labeling data was authorized for
// cross-org use.
type ConsentKind string

const (
	ConsentExplicit ConsentKind = "explicit"
	ConsentImplicit ConsentKind = "implicit"
	ConsentNone     ConsentKind = "none"
)

// FPEvent is an immutable record of a past decision labeled after the fact.
type FPEvent struct {
	EventID         string      `json:"eventId" dynamodbav:"eventId"`
	RuleID          string      `json:"ruleId" dynamodbav:"ruleId"`
	RuleVersion     string      `json:"ruleVersion" dynamodbav:"ruleVersion"`
	FindingID       string      `json:"findingId" dynamodbav:"findingId"`
	OrgIDHash       string      `json:"orgIdHash" dynamodbav:"orgIdHash"`
	Timestamp       time.Time   `json:"timestamp" dynamodbav:"timestamp,unixtime"`
	IsFalsePositive bool        `json:"isFalsePositive" dynamodbav:"isFalsePositive"`
	ReviewedBy      string      `json:"reviewedBy,omitempty" dynamodbav:"reviewedBy,omitempty"`
	Ticket          string      `json:"ticket,omitempty" dynamodbav:"ticket,omitempty"`
	Consent         ConsentKind `json:"consent" dynamodbav:"consent"`
	ExpiresAt       time.Time   `json:"expiresAt" dynamodbav:"expiresAt,unixtime"`
}

// Window is the derived read-model over a rule's recent FPEvents.
type Window struct {
	RuleID      string    `json:"ruleId"`
	Events      []FPEvent `json:"events"`
	Total       int       `json:"total"`
	LabeledFP   int       `json:"labeledFP"`
	ObservedFPR float64   `json:"observedFPR"`
}

// NewWindow computes a Window's derived fields from an ordered event slice.
func NewWindow(ruleID string, events []FPEvent) Window {
	w := Window{RuleID: ruleID, Events: events, Total: len(events)}
	for _, e := range events {
		if e.IsFalsePositive {
			w.LabeledFP++
		}
	}
	if w.Total > 0 {
		w.ObservedFPR = float64(w.LabeledFP) / float64(w.Total)
	}
	return w
}
