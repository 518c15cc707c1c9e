package revoke

import (
	"context"
	"log/slog"

	"github.com/nhle/branch-revoker/internal/model"
	"github.com/nhle/branch-revoker/internal/resolve"
	"github.com/nhle/branch-revoker/internal/source"
	"github.com/nhle/branch-revoker/internal/source/gitlab"
)

// ProtectedBranchAPI is the slice of the GitLab client the revoker
// uses. Implemented by *gitlab.Client.
type ProtectedBranchAPI interface {
	ProtectedReleaseBranch(ctx context.Context, projectID, branch string) (*gitlab.ProtectedBranch, error)
	UpdateProtectedReleaseBranch(ctx context.Context, projectID, branch string, update gitlab.ProtectedBranchUpdate) (*gitlab.ProtectedBranch, error)
	FindProjectID(ctx context.Context, repoName string) (string, error)
}

// Revoker removes a user's push/merge exception rules from protected
// release branches. It is the only component that mutates GitLab
// state; with DryRun set it reports what it would remove instead.
type Revoker struct {
	api    ProtectedBranchAPI
	dryRun bool
	logger *slog.Logger
}

// NewRevoker creates a revoker around the given GitLab API.
func NewRevoker(
	api ProtectedBranchAPI,
	dryRun bool,
	logger *slog.Logger,
) *Revoker {
	return &Revoker{api: api, dryRun: dryRun, logger: logger}
}

// Revoke walks every (project, branch) pair in the map and removes the
// rules whose description matches the user's display name. Each pair
// is independent: a failure on one is recorded and the walk continues.
func (r *Revoker) Revoke(
	ctx context.Context,
	user string,
	bpm resolve.BranchProjectMap,
) []model.RevocationOutcome {
	r.logger.Info("starting access revocation", "user", user, "dry_run", r.dryRun)

	var outcomes []model.RevocationOutcome
	for _, pb := range bpm {
		for _, branch := range pb.Branches {
			outcomes = append(
				outcomes, r.revokeBranch(ctx, user, pb.ProjectID, branch),
			)
		}
	}

	r.logger.Info("finished access revocation", "user", user, "pairs", len(outcomes))
	return outcomes
}

// revokeBranch handles a single (project, branch) pair.
func (r *Revoker) revokeBranch(
	ctx context.Context,
	user string,
	projectID string,
	branch string,
) model.RevocationOutcome {
	outcome := model.RevocationOutcome{
		ProjectID: projectID,
		Branch:    branch,
	}

	pb, err := r.api.ProtectedReleaseBranch(ctx, projectID, branch)
	if err != nil {
		if source.IsNotFound(err) {
			r.logger.Warn("branch is not protected, skipping",
				"project", projectID, "branch", "release/"+branch)
			outcome.Kind = model.OutcomeNotProtected
			return outcome
		}
		r.logger.Error("protected branch fetch failed",
			"project", projectID, "branch", branch, "error", err)
		outcome.Kind = model.OutcomeFailed
		outcome.Detail = err.Error()
		return outcome
	}

	pushID, pushFound := matchRule(pb.PushAccessLevels, user)
	mergeID, mergeFound := matchRule(pb.MergeAccessLevels, user)

	if !pushFound && !mergeFound {
		r.logger.Info("no push or merge rule for user on branch",
			"user", user, "project", projectID, "branch", branch)
		outcome.Kind = model.OutcomeNoMatchingRule
		return outcome
	}

	var update gitlab.ProtectedBranchUpdate
	if pushFound {
		r.logger.Info("found push rule to revoke",
			"user", user, "project", projectID, "branch", branch, "rule_id", pushID)
		update.AllowedToPush = []gitlab.AccessLevelUpdate{
			{ID: pushID, Destroy: true},
		}
	}
	if mergeFound {
		r.logger.Info("found merge rule to revoke",
			"user", user, "project", projectID, "branch", branch, "rule_id", mergeID)
		update.AllowedToMerge = []gitlab.AccessLevelUpdate{
			{ID: mergeID, Destroy: true},
		}
	}

	outcome.RevokedPush = pushFound
	outcome.RevokedMerge = mergeFound

	if r.dryRun {
		r.logger.Info("dry run, skipping removal patch",
			"user", user, "project", projectID, "branch", branch)
		outcome.Kind = model.OutcomeDryRun
		return outcome
	}

	if _, err := r.api.UpdateProtectedReleaseBranch(ctx, projectID, branch, update); err != nil {
		r.logger.Error("rule removal failed",
			"user", user, "project", projectID, "branch", branch, "error", err)
		outcome.Kind = model.OutcomeFailed
		outcome.Detail = err.Error()
		return outcome
	}

	r.logger.Info("revoked access",
		"user", user, "project", projectID, "branch", branch,
		"push", pushFound, "merge", mergeFound)
	outcome.Kind = model.OutcomeRevoked
	return outcome
}

// matchRule finds the first rule whose description equals the user's
// display name. First match in API response order wins.
func matchRule(rules []gitlab.AccessLevel, user string) (int, bool) {
	for _, rule := range rules {
		if rule.AccessLevelDescription == user {
			return rule.ID, true
		}
	}
	return 0, false
}
