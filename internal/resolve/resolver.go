package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nhle/branch-revoker/internal/model"
	"github.com/nhle/branch-revoker/internal/source/gitlab"
)

// maxProjects caps how many projects a single ticket may fan out to.
// A ticket touching more repos than this is almost always a bad search
// match, so the excess is dropped rather than revoked against.
const maxProjects = 5

// releaseBranchPrefix selects the branches eligible for revocation.
const releaseBranchPrefix = "release/"

// fallbackPrefix is the ticket-key prefix eligible for the
// default-repo fallback when no merge requests are linked.
const fallbackPrefix = "DEV"

var (
	// ErrNoMergeRequest means no merge request references the ticket
	// and the fallback policy does not apply.
	ErrNoMergeRequest = errors.New("no merge request references ticket")

	// ErrNoReleaseBranches means merge requests were found but none
	// of them targets a release branch.
	ErrNoReleaseBranches = errors.New("no release branches in any merge request")
)

// ProjectBranches pairs a project with the release-branch short-names
// (suffix after "release/") touched by a ticket, in first-seen order.
type ProjectBranches struct {
	ProjectID string
	Branches  []string
}

// BranchProjectMap is an ordered, duplicate-free projection of the
// {project, branch} pairs a ticket touched. Order is whatever order
// the upstream API returned; it is never re-sorted.
type BranchProjectMap []ProjectBranches

// MergeRequestLocator finds merge requests referencing a ticket.
// Implemented by *gitlab.Client.
type MergeRequestLocator interface {
	SearchMergeRequests(ctx context.Context, ticketID string) ([]gitlab.MergeRequest, error)
}

// FixVersionSource derives release-branch names from a ticket's fix
// versions. Implemented by *jira.Tickets.
type FixVersionSource interface {
	FixVersionBranches(ctx context.Context, ticketID string) ([]string, error)
}

// Resolver composes merge-request search results into a bounded
// branch-project map, with a fallback path for tickets that have no
// linked merge requests.
type Resolver struct {
	locator      MergeRequestLocator
	fixVersions  FixVersionSource
	defaultRepos []model.DefaultRepo
	logger       *slog.Logger
}

// NewResolver creates a resolver. defaultRepos is the static fallback
// project table, in definition order.
func NewResolver(
	locator MergeRequestLocator,
	fixVersions FixVersionSource,
	defaultRepos []model.DefaultRepo,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		locator:      locator,
		fixVersions:  fixVersions,
		defaultRepos: defaultRepos,
		logger:       logger,
	}
}

// Resolve maps a ticket to the projects and release branches its merge
// requests target. When no merge requests are found, DEV tickets
// outside QA mode fall back to the configured default repos paired
// with branches derived from the ticket's fix versions; any other
// ticket fails with ErrNoMergeRequest.
//
// The result is capped at maxProjects entries, keeping the first
// entries in response order. Truncation is logged, not an error.
func (r *Resolver) Resolve(
	ctx context.Context,
	ticketID string,
	qaMode bool,
) (BranchProjectMap, error) {
	mrs, err := r.locator.SearchMergeRequests(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if len(mrs) == 0 {
		return r.resolveFallback(ctx, ticketID, qaMode)
	}

	r.logger.Info("merge requests found",
		"ticket", ticketID, "count", len(mrs))

	bpm := fromMergeRequests(ticketID, mrs, r.logger)
	if len(bpm) == 0 {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ErrNoReleaseBranches)
	}

	return r.truncate(ticketID, bpm), nil
}

// fromMergeRequests keeps only release-branch targets, strips the
// prefix, and groups branches by target project preserving first-seen
// order with per-project deduplication.
func fromMergeRequests(
	ticketID string,
	mrs []gitlab.MergeRequest,
	logger *slog.Logger,
) BranchProjectMap {
	var bpm BranchProjectMap
	index := make(map[string]int)

	for _, mr := range mrs {
		logger.Info("merge request",
			"ticket", ticketID, "url", mr.WebURL,
			"target_branch", mr.TargetBranch)

		if mr.TargetProjectID == 0 || mr.TargetBranch == "" {
			continue
		}
		if !strings.HasPrefix(mr.TargetBranch, releaseBranchPrefix) {
			continue
		}
		branch := strings.TrimPrefix(mr.TargetBranch, releaseBranchPrefix)
		projectID := strconv.Itoa(mr.TargetProjectID)

		pos, seen := index[projectID]
		if !seen {
			bpm = append(bpm, ProjectBranches{ProjectID: projectID})
			pos = len(bpm) - 1
			index[projectID] = pos
		}

		if !contains(bpm[pos].Branches, branch) {
			bpm[pos].Branches = append(bpm[pos].Branches, branch)
		}
	}

	return bpm
}

// resolveFallback applies the no-merge-request policy: DEV tickets
// outside QA mode target the default repos on the branches derived
// from the ticket's fix versions.
func (r *Resolver) resolveFallback(
	ctx context.Context,
	ticketID string,
	qaMode bool,
) (BranchProjectMap, error) {
	prefix, _, _ := strings.Cut(ticketID, "-")
	if prefix != fallbackPrefix || qaMode {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ErrNoMergeRequest)
	}

	branches, err := r.fixVersions.FixVersionBranches(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	repos := r.defaultRepos
	if len(repos) > maxProjects {
		repos = repos[:maxProjects]
	}

	r.logger.Warn("no merge requests found, falling back to default repos",
		"ticket", ticketID, "repos", len(repos), "branches", branches)

	bpm := make(BranchProjectMap, 0, len(repos))
	for _, repo := range repos {
		bpm = append(bpm, ProjectBranches{
			ProjectID: repo.ProjectID,
			Branches:  append([]string(nil), branches...),
		})
	}

	return bpm, nil
}

// truncate enforces the project cap, logging when entries are dropped.
func (r *Resolver) truncate(
	ticketID string,
	bpm BranchProjectMap,
) BranchProjectMap {
	if len(bpm) <= maxProjects {
		return bpm
	}

	r.logger.Warn("ticket touches too many projects, limiting",
		"ticket", ticketID, "projects", len(bpm), "limit", maxProjects)

	return bpm[:maxProjects]
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
