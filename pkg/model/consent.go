package model

import "time"

// Resource enumerates the consent-gated resources a rule or the calibration
// subsystem may request access to.
type Resource string

const (
	ResourceFPPatterns Resource = "fp_patterns"
	ResourceFPMetrics  Resource = "fp_metrics"
)

// ConsentRecord is org- or repo-scoped authorization to use an org's FP
// labeling data. A record with RepoID == "" is org-scope and, while valid,
// covers every repo in that org unless a repo-scope record overrides it.
type ConsentRecord struct {
	OrgID     string      `json:"orgId" dynamodbav:"orgId"`
	RepoID    string      `json:"repoId,omitempty" dynamodbav:"repoId,omitempty"`
	Resource  Resource    `json:"resource" dynamodbav:"resource"`
	Type      ConsentKind `json:"type" dynamodbav:"type"`
	GrantedAt time.Time   `json:"grantedAt" dynamodbav:"grantedAt,unixtime"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty" dynamodbav:"expiresAt,unixtime,omitempty"`
	RevokedAt *time.Time  `json:"revokedAt,omitempty" dynamodbav:"revokedAt,unixtime,omitempty"`
	Grantor   string      `json:"grantor" dynamodbav:"grantor"`
}

// IsOrgScope reports whether r applies to every repo in the org.
func (r ConsentRecord) IsOrgScope() bool { return r.RepoID == "" }

// Active reports whether r currently grants access, i.e. it is not expired
// or revoked and its Type actually authorizes use.
func (r ConsentRecord) Active(now time.Time) bool {
	if r.Type == ConsentNone {
		return false
	}
	if r.RevokedAt != nil && !r.RevokedAt.After(now) {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return false
	}
	return true
}
