package jira

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nhle/branch-revoker/internal/source"
)

func newTestTickets(t *testing.T, handler http.HandlerFunc) *Tickets {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewTickets(server.URL, "svc-user", "svc-pass")
}

func TestAssignee(t *testing.T) {
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/DEV-123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "svc-user" || pass != "svc-pass" {
			t.Errorf("missing or wrong basic auth")
		}
		w.Write([]byte(`{
			"key": "DEV-123",
			"fields": {"assignee": {"displayName": "Jane Doe"}}
		}`))
	})

	got, err := tickets.Assignee(context.Background(), "DEV-123")
	if err != nil {
		t.Fatalf("Assignee() error: %v", err)
	}
	if got != "Jane Doe" {
		t.Errorf("Assignee() = %q, want %q", got, "Jane Doe")
	}
}

func TestAssigneeKeyMismatch(t *testing.T) {
	// Jira silently follows moved issues; the client must refuse the
	// answer rather than revoke access for the wrong ticket.
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"key": "QA-999",
			"fields": {"assignee": {"displayName": "Jane Doe"}}
		}`))
	})

	_, err := tickets.Assignee(context.Background(), "DEV-123")
	if err == nil {
		t.Fatal("Assignee() succeeded on mismatched key")
	}
	if !IsIntegrityError(err) {
		t.Errorf("error is %v, want IntegrityError", err)
	}

	var intErr *IntegrityError
	if errors.As(err, &intErr) {
		if intErr.Requested != "DEV-123" || intErr.Received != "QA-999" {
			t.Errorf("IntegrityError = %+v, want requested DEV-123, received QA-999", intErr)
		}
	}
}

func TestAssigneeNoAssignee(t *testing.T) {
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key": "DEV-123", "fields": {"assignee": null}}`))
	})

	if _, err := tickets.Assignee(context.Background(), "DEV-123"); err == nil {
		t.Fatal("Assignee() succeeded with null assignee")
	}
}

func TestAssigneeNotFound(t *testing.T) {
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessages": ["Issue Does Not Exist"]}`))
	})

	_, err := tickets.Assignee(context.Background(), "DEV-404")
	if !source.IsNotFound(err) {
		t.Errorf("error is %v, want NotFoundError", err)
	}
}

func TestAssigneeAuthError(t *testing.T) {
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := tickets.Assignee(context.Background(), "DEV-123")
	if !source.IsAuthError(err) {
		t.Errorf("error is %v, want AuthError", err)
	}
}

func TestStatus(t *testing.T) {
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"key": "DEV-123",
			"fields": {"status": {"name": "Resolved", "id": "5"}}
		}`))
	})

	got, err := tickets.Status(context.Background(), "DEV-123")
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if got != "Resolved" {
		t.Errorf("Status() = %q, want %q", got, "Resolved")
	}
}

func TestFixVersionBranches(t *testing.T) {
	tests := []struct {
		name     string
		versions string
		want     []string
	}{
		{
			name:     "single version",
			versions: `[{"name": "24R3"}]`,
			want:     []string{"24.3"},
		},
		{
			name:     "multiple versions keep order",
			versions: `[{"name": "24R3"}, {"name": "25R1"}]`,
			want:     []string{"24.3", "25.1"},
		},
		{
			name:     "version without R passes through",
			versions: `[{"name": "24.3.5"}]`,
			want:     []string{"24.3.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{
					"key": "DEV-123",
					"fields": {"fixVersions": ` + tt.versions + `}
				}`))
			})

			got, err := tickets.FixVersionBranches(context.Background(), "DEV-123")
			if err != nil {
				t.Fatalf("FixVersionBranches() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("FixVersionBranches() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("branch[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFixVersionBranchesEmpty(t *testing.T) {
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key": "DEV-123", "fields": {"fixVersions": []}}`))
	})

	_, err := tickets.FixVersionBranches(context.Background(), "DEV-123")
	if !errors.Is(err, ErrNoFixVersions) {
		t.Errorf("error is %v, want ErrNoFixVersions", err)
	}
}

func TestFilterIssueKeys(t *testing.T) {
	tickets := newTestTickets(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("jql") != "filter=10042" {
			t.Errorf("jql = %q, want %q", query.Get("jql"), "filter=10042")
		}
		if query.Get("fields") != "key" {
			t.Errorf("fields = %q, want %q", query.Get("fields"), "key")
		}
		w.Write([]byte(`{
			"total": 2,
			"issues": [{"key": "DEV-1"}, {"key": "DEV-2"}]
		}`))
	})

	got, err := tickets.FilterIssueKeys(context.Background(), "10042")
	if err != nil {
		t.Fatalf("FilterIssueKeys() error: %v", err)
	}
	want := []string{"DEV-1", "DEV-2"}
	if len(got) != len(want) {
		t.Fatalf("FilterIssueKeys() = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
