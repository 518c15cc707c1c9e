package revoke

import (
	"context"

	"github.com/nhle/branch-revoker/internal/model"
	"github.com/nhle/branch-revoker/internal/source"
	"github.com/nhle/branch-revoker/internal/source/gitlab"
)

// RevokeAll strips every user-scoped push/merge rule (a rule with a
// user ID and no group ID) from the given release branches across a
// repository list. Group and role rules are left alone. Used by the
// bulk sweep mode, where the branch list comes from the operator
// rather than from ticket correlation.
func (r *Revoker) RevokeAll(
	ctx context.Context,
	branches []string,
	repos []model.DefaultRepo,
) []model.RevocationOutcome {
	r.logger.Info("starting bulk revocation",
		"repos", len(repos), "branches", branches, "dry_run", r.dryRun)

	var outcomes []model.RevocationOutcome
	for _, repo := range repos {
		projectID := repo.ProjectID
		if projectID == "" {
			id, err := r.api.FindProjectID(ctx, repo.Name)
			if err != nil {
				r.logger.Error("project lookup failed",
					"repo", repo.Name, "error", err)
				continue
			}
			if id == "" {
				r.logger.Warn("no matching project, skipping repo",
					"repo", repo.Name)
				continue
			}
			projectID = id
		}

		for _, branch := range branches {
			outcomes = append(
				outcomes, r.revokeAllOnBranch(ctx, projectID, branch),
			)
		}
	}

	r.logger.Info("finished bulk revocation", "pairs", len(outcomes))
	return outcomes
}

// revokeAllOnBranch removes all user-scoped rules from one branch.
func (r *Revoker) revokeAllOnBranch(
	ctx context.Context,
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
		outcome.Kind = model.OutcomeFailed
		outcome.Detail = err.Error()
		return outcome
	}

	pushUpdates, pushUsers := userRuleUpdates(pb.PushAccessLevels)
	mergeUpdates, mergeUsers := userRuleUpdates(pb.MergeAccessLevels)

	if len(pushUpdates) == 0 && len(mergeUpdates) == 0 {
		r.logger.Info("no user-scoped rules on branch",
			"project", projectID, "branch", branch)
		outcome.Kind = model.OutcomeNoMatchingRule
		return outcome
	}

	r.logger.Info("found user-scoped rules to revoke",
		"project", projectID, "branch", branch,
		"push_users", pushUsers, "merge_users", mergeUsers)

	outcome.RevokedPush = len(pushUpdates) > 0
	outcome.RevokedMerge = len(mergeUpdates) > 0

	if r.dryRun {
		outcome.Kind = model.OutcomeDryRun
		return outcome
	}

	update := gitlab.ProtectedBranchUpdate{
		AllowedToPush:  pushUpdates,
		AllowedToMerge: mergeUpdates,
	}
	if _, err := r.api.UpdateProtectedReleaseBranch(ctx, projectID, branch, update); err != nil {
		r.logger.Error("bulk rule removal failed",
			"project", projectID, "branch", branch, "error", err)
		outcome.Kind = model.OutcomeFailed
		outcome.Detail = err.Error()
		return outcome
	}

	r.logger.Info("revoked all user-scoped rules",
		"project", projectID, "branch", branch,
		"push_rules", len(pushUpdates), "merge_rules", len(mergeUpdates))
	outcome.Kind = model.OutcomeRevoked
	return outcome
}

// userRuleUpdates builds destroy directives for every user-scoped rule
// in a category, along with the affected display names for the log.
func userRuleUpdates(rules []gitlab.AccessLevel) ([]gitlab.AccessLevelUpdate, []string) {
	var updates []gitlab.AccessLevelUpdate
	var users []string
	for _, rule := range rules {
		if rule.UserID == nil || rule.GroupID != nil {
			continue
		}
		updates = append(updates, gitlab.AccessLevelUpdate{
			ID: rule.ID, Destroy: true,
		})
		if rule.AccessLevelDescription != "" &&
			!containsString(users, rule.AccessLevelDescription) {
			users = append(users, rule.AccessLevelDescription)
		}
	}
	return updates, users
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
