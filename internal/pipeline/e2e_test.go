package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nhle/branch-revoker/internal/model"
	"github.com/nhle/branch-revoker/internal/resolve"
	"github.com/nhle/branch-revoker/internal/revoke"
	"github.com/nhle/branch-revoker/internal/source/gitlab"
	"github.com/nhle/branch-revoker/internal/source/jira"
)

// TestRunFallbackEndToEnd drives the full pipeline with real HTTP
// clients against fake Jira and GitLab servers: a resolved DEV ticket
// with no linked merge requests falls back to the default repos on the
// branch derived from its fix version, and revocation runs against
// every one of them.
func TestRunFallbackEndToEnd(t *testing.T) {
	jiraServer := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/rest/api/2/issue/DEV-500") {
				t.Errorf("unexpected Jira path %s", r.URL.Path)
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{
				"key": "DEV-500",
				"fields": {
					"assignee": {"displayName": "Jane Doe"},
					"status": {"name": "Resolved"},
					"fixVersions": [{"name": "24R3"}]
				}
			}`))
		}))
	defer jiraServer.Close()

	var patched []string
	gitlabServer := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/merge_requests":
				// No merge requests reference this ticket.
				w.Write([]byte(`[]`))

			case strings.HasPrefix(r.URL.Path, "/projects/") &&
				r.Method == http.MethodGet:
				if !strings.HasSuffix(r.RequestURI, "release%2F24.3") {
					t.Errorf("unexpected protected-branch URI %s", r.RequestURI)
				}
				w.Write([]byte(`{
					"id": 1, "name": "release/24.3",
					"push_access_levels": [
						{"id": 900, "access_level": 40, "user_id": 9,
						 "group_id": null,
						 "access_level_description": "Jane Doe"}
					],
					"merge_access_levels": []
				}`))

			case r.Method == http.MethodPatch:
				var body map[string]interface{}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decoding patch body: %v", err)
				}
				if _, ok := body["allowed_to_push"]; !ok {
					t.Error("patch payload missing allowed_to_push")
				}
				patched = append(patched, r.RequestURI)
				w.Write([]byte(`{"id": 1, "name": "release/24.3"}`))

			default:
				t.Errorf("unexpected GitLab request %s %s", r.Method, r.URL.Path)
				http.NotFound(w, r)
			}
		}))
	defer gitlabServer.Close()

	tickets := jira.NewTickets(jiraServer.URL, "svc-user", "svc-pass")
	gitlabClient := gitlab.NewClient(gitlabServer.URL, "glpat-test")

	defaultRepos := []model.DefaultRepo{
		{ProjectID: "100", Name: "vault-core"},
		{ProjectID: "200", Name: "vault-ui"},
	}
	resolver := resolve.NewResolver(
		gitlabClient, tickets, defaultRepos, testLogger(),
	)
	revoker := revoke.NewRevoker(gitlabClient, false, testLogger())
	pipe := New(tickets, resolver, revoker, 30, false, false, testLogger())

	report, err := pipe.Run(context.Background(), []string{"DEV-500"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	result := report.Results[0]
	if result.Assignee != "Jane Doe" {
		t.Errorf("Assignee = %q, want %q", result.Assignee, "Jane Doe")
	}
	if result.AccessStatus != model.StageOK {
		t.Fatalf("AccessStatus = %q, want %q", result.AccessStatus, model.StageOK)
	}

	// One revocation per default repo, all on release/24.3.
	if len(result.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(result.Outcomes))
	}
	wantProjects := []string{"100", "200"}
	for i, outcome := range result.Outcomes {
		if outcome.ProjectID != wantProjects[i] {
			t.Errorf("outcome[%d].ProjectID = %q, want %q",
				i, outcome.ProjectID, wantProjects[i])
		}
		if outcome.Branch != "24.3" {
			t.Errorf("outcome[%d].Branch = %q, want %q", i, outcome.Branch, "24.3")
		}
		if outcome.Kind != model.OutcomeRevoked {
			t.Errorf("outcome[%d].Kind = %q, want %q",
				i, outcome.Kind, model.OutcomeRevoked)
		}
	}

	if len(patched) != 2 {
		t.Errorf("got %d patch requests, want 2: %v", len(patched), patched)
	}
	for _, uri := range patched {
		if !strings.HasSuffix(uri, "release%2F24.3") {
			t.Errorf("patch URI %s does not target release%%2F24.3", uri)
		}
	}
}
