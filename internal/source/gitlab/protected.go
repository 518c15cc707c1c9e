package gitlab

import (
	"context"
	"fmt"

	"github.com/nhle/branch-revoker/internal/source"
)

// releaseBranchPath builds the protected-branch resource path for a
// release branch short-name. The slash in the full branch name must be
// percent-encoded inside the path segment (release%2F<branch>).
func releaseBranchPath(projectID, branch string) string {
	return fmt.Sprintf(
		"/projects/%s/protected_branches/release%%2F%s", projectID, branch,
	)
}

// ProtectedReleaseBranch fetches the protection rules for
// release/<branch> in the given project. A 404 means the branch is not
// protected; callers detect that with source.IsNotFound.
func (c *Client) ProtectedReleaseBranch(
	ctx context.Context,
	projectID string,
	branch string,
) (*ProtectedBranch, error) {
	var pb ProtectedBranch
	err := c.Get(ctx, releaseBranchPath(projectID, branch), &pb)
	if err != nil {
		if source.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf(
			"fetching protected branch release/%s in project %s: %w",
			branch, projectID, err,
		)
	}

	return &pb, nil
}

// UpdateProtectedReleaseBranch applies a rule update (typically destroy
// directives) to release/<branch> in the given project with a single
// PATCH request.
func (c *Client) UpdateProtectedReleaseBranch(
	ctx context.Context,
	projectID string,
	branch string,
	update ProtectedBranchUpdate,
) (*ProtectedBranch, error) {
	var pb ProtectedBranch
	err := c.Patch(ctx, releaseBranchPath(projectID, branch), update, &pb)
	if err != nil {
		return nil, fmt.Errorf(
			"updating protected branch release/%s in project %s: %w",
			branch, projectID, err,
		)
	}

	return &pb, nil
}
