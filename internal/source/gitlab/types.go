package gitlab

// MergeRequest is the subset of the merge-request list response this
// tool reads.
type MergeRequest struct {
	ID              int    `json:"id"`
	IID             int    `json:"iid"`
	ProjectID       int    `json:"project_id"`
	TargetProjectID int    `json:"target_project_id"`
	Title           string `json:"title"`
	State           string `json:"state"`
	SourceBranch    string `json:"source_branch"`
	TargetBranch    string `json:"target_branch"`
	WebURL          string `json:"web_url"`
}

// AccessLevel is one entry in a protected branch's push or merge
// allow-list. For a human exception, UserID is set, GroupID is null,
// and AccessLevelDescription carries the user's display name.
type AccessLevel struct {
	ID                     int    `json:"id"`
	AccessLevel            int    `json:"access_level"`
	UserID                 *int   `json:"user_id"`
	GroupID                *int   `json:"group_id"`
	AccessLevelDescription string `json:"access_level_description"`
}

// ProtectedBranch is the response from
// GET /projects/:id/protected_branches/:name.
type ProtectedBranch struct {
	ID                int           `json:"id"`
	Name              string        `json:"name"`
	PushAccessLevels  []AccessLevel `json:"push_access_levels"`
	MergeAccessLevels []AccessLevel `json:"merge_access_levels"`
}

// AccessLevelUpdate is a single directive in a protected-branch PATCH.
// Destroy marks an existing rule for removal.
type AccessLevelUpdate struct {
	ID      int  `json:"id"`
	Destroy bool `json:"_destroy"`
}

// ProtectedBranchUpdate is the PATCH body for
// PATCH /projects/:id/protected_branches/:name. Empty categories are
// omitted so the request touches only the rules it names.
type ProtectedBranchUpdate struct {
	AllowedToPush  []AccessLevelUpdate `json:"allowed_to_push,omitempty"`
	AllowedToMerge []AccessLevelUpdate `json:"allowed_to_merge,omitempty"`
}

// Project is the subset of the project list response used by the
// repo-name lookup.
type Project struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}
