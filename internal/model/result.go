package model

// StageStatus describes how far a pipeline stage got for one ticket.
type StageStatus string

const (
	// StageOK means the stage completed and produced its output.
	StageOK StageStatus = "ok"

	// StageFailed means the stage errored; later stages are skipped.
	StageFailed StageStatus = "failed"

	// StageSkipped means an earlier stage failed before this one ran.
	StageSkipped StageStatus = "skipped"
)

// OutcomeKind is the terminal state of revocation for one
// (project, branch) pair.
type OutcomeKind string

const (
	// OutcomeNotProtected means the branch has no protection rules at
	// all (GitLab answered 404). Nothing to revoke.
	OutcomeNotProtected OutcomeKind = "not-protected"

	// OutcomeNoMatchingRule means the branch is protected but carries
	// no push or merge exception for the target user.
	OutcomeNoMatchingRule OutcomeKind = "no-matching-rule"

	// OutcomeRevoked means the matched rules were removed.
	OutcomeRevoked OutcomeKind = "revoked"

	// OutcomeDryRun means matching rules were found but the removal
	// patch was suppressed by dry-run mode.
	OutcomeDryRun OutcomeKind = "dry-run"

	// OutcomeFailed means the fetch or removal request errored for
	// this pair; other pairs are unaffected.
	OutcomeFailed OutcomeKind = "revoke-failed"
)

// RevocationOutcome records what happened for a single
// (project, branch) pair.
type RevocationOutcome struct {
	ProjectID string      `json:"project_id"`
	Branch    string      `json:"branch"`
	Kind      OutcomeKind `json:"outcome"`

	// RevokedPush / RevokedMerge report which rule categories matched
	// (and, outside dry-run, were destroyed).
	RevokedPush  bool `json:"revoked_push,omitempty"`
	RevokedMerge bool `json:"revoked_merge,omitempty"`

	// Detail carries the error text or response body for failures.
	Detail string `json:"detail,omitempty"`
}

// TicketResult is the per-ticket record accumulated by the pipeline.
// Each stage short-circuits the ones after it on failure.
type TicketResult struct {
	TicketID string `json:"ticket_id"`

	// Assignee is the resolved display name, when UserStatus is ok.
	Assignee   string      `json:"assignee,omitempty"`
	UserStatus StageStatus `json:"user_status"`
	UserError  string      `json:"user_error,omitempty"`

	BranchStatus StageStatus `json:"branch_status"`
	BranchError  string      `json:"branch_error,omitempty"`

	AccessStatus StageStatus         `json:"access_status"`
	Outcomes     []RevocationOutcome `json:"outcomes,omitempty"`
}

// Report is the serializable summary of one full run.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
	DryRun     bool           `json:"dry_run"`
	Results    []TicketResult `json:"results"`
}
