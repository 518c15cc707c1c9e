package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// FindProjectID resolves a repository name to its numeric project ID
// via the project search endpoint. The search is a substring match on
// GitLab's side, so only an exact name match wins. Returns an empty
// string when no project matches.
func (c *Client) FindProjectID(
	ctx context.Context,
	repoName string,
) (string, error) {
	path := fmt.Sprintf("/projects?search=%s", url.QueryEscape(repoName))

	var projects []Project
	if err := c.Get(ctx, path, &projects); err != nil {
		return "", fmt.Errorf("searching project %q: %w", repoName, err)
	}

	for _, p := range projects {
		if p.Name == repoName {
			return strconv.Itoa(p.ID), nil
		}
	}

	return "", nil
}
