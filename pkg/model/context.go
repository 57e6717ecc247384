package model

// Mode enumerates the contexts in which analyze() can be invoked.
type Mode string

const (
	ModePullRequest Mode = "pull_request"
	ModeMergeGroup  Mode = "merge_group"
	ModeDrift       Mode = "drift"
	ModeLocal       Mode = "local"
	ModeIssue       Mode = "issue"
)

// ValidModes is used to reject unknown modes with INVALID_INPUT.
var ValidModes = map[Mode]bool{
	ModePullRequest: true,
	ModeMergeGroup:  true,
	ModeDrift:       true,
	ModeLocal:       true,
	ModeIssue:       true,
}

// FileEntry is one file under analysis.
type FileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// NeighborGovernanceState is a cross-repo rule's view of a sibling repo's
// last-known governance posture, supplied by the caller via OrgContext.
type NeighborGovernanceState struct {
	Repo     string   `json:"repo"`
	Decision Decision `json:"decision"`
}

// OrgContext carries the policy manifest and neighbor-repo state needed by
// cross-repo rules. It is optional — most rules never look at it.
type OrgContext struct {
	Manifest  *PolicyManifest           `json:"manifest,omitempty"`
	Neighbors []NeighborGovernanceState `json:"neighbors,omitempty"`
}

// LicenseTier gates which rule tiers and adapter features are available to
// the calling org.
type LicenseTier string

const (
	LicenseExperimental  LicenseTier = "experimental"
	LicenseAuthoritative LicenseTier = "authoritative"
)

// AnalysisContext is the input to Rule.Evaluate and to the orchestrator's
// analyze() entrypoint.
type AnalysisContext struct {
	Owner     string      `json:"owner"`
	Name      string      `json:"name"`
	CommitSha string      `json:"commitSha"`
	Branch    string      `json:"branch"`
	Mode      Mode        `json:"mode"`
	Files     []FileEntry `json:"files"`
	Actor     string      `json:"actor,omitempty"`

	OrgContext  *OrgContext `json:"orgContext,omitempty"`
	LicenseTier LicenseTier `json:"licenseTier"`

	// RequestID is supplied by the caller, or generated deterministically
	// from the remaining fields when empty, so identical inputs produce
	// byte-identical reports.
	RequestID string `json:"requestId,omitempty"`
}

// Validate rejects structurally invalid contexts before any adapter or rule
// is touched, per the orchestrator's step 1.
func (a AnalysisContext) Validate() error {
	if a.Owner == "" || a.Name == "" {
		return errMissingField("owner/name")
	}
	if a.CommitSha == "" {
		return errMissingField("commitSha")
	}
	if !ValidModes[a.Mode] {
		return errInvalidMode(a.Mode)
	}
	return nil
}
