package redactor

import "regexp"

// Tag is a capability classification attached to a redacted span.
type Tag string

const (
	TagSecret     Tag = "SECRET"
	TagEmail      Tag = "EMAIL"
	TagPII        Tag = "PII"
	TagAPIKey     Tag = "API_KEY"
	TagRestricted Tag = "RESTRICTED"
	TagNone       Tag = "NONE"
)

// classifier heuristics, ordered most-specific first. The first match wins.
var classifiers = []struct {
	tag Tag
	re  *regexp.Regexp
}{
	{TagAPIKey, regexp.MustCompile(`(?i)\b(sk|pk|ghp|gho|glpat|xox[baprs])-[A-Za-z0-9_\-]{10,}\b`)},
	{TagAPIKey, regexp.MustCompile(`(?i)\bAKIA[0-9A-Z]{16}\b`)},
	{TagSecret, regexp.MustCompile(`(?i)\b(secret|password|passwd|token)\s*[:=]\s*\S+`)},
	{TagEmail, regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{TagPII, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{TagRestricted, regexp.MustCompile(`(?i)\b(confidential|restricted|internal[- ]only)\b`)},
}

// Classify returns the heuristic tag for a plaintext span, or TagNone if
// nothing matches. Supplements the SECRET/EMAIL pair the redactor's
// validate path cares about with PII/API_KEY/RESTRICTED detection so
// callers don't need to hand-pick a tag for every span.
func Classify(plaintext string) Tag {
	for _, c := range classifiers {
		if c.re.MatchString(plaintext) {
			return c.tag
		}
	}
	return TagNone
}
