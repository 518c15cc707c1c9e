package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/branch-revoker/internal/model"
	"github.com/nhle/branch-revoker/internal/resolve"
	"github.com/nhle/branch-revoker/internal/source/jira"
)

// terminalStatuses are the only ticket statuses revocation may run
// against. Revoking access while work is still open would lock the
// assignee out mid-release.
var terminalStatuses = map[string]bool{
	"Closed":   true,
	"Resolved": true,
}

// HardStopError aborts the entire run, not just the current ticket.
// It is raised when a ticket is not in a terminal status or when the
// fallback path has no fix version to derive a branch from.
type HardStopError struct {
	TicketID string
	Reason   string
	Err      error
}

func (e *HardStopError) Error() string {
	msg := fmt.Sprintf("hard stop at ticket %s: %s", e.TicketID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HardStopError) Unwrap() error { return e.Err }

// IsHardStop reports whether err (or any error in its chain) is a
// HardStopError.
func IsHardStop(err error) bool {
	var hsErr *HardStopError
	return errors.As(err, &hsErr)
}

// TicketSource resolves ticket-level facts. Implemented by
// *jira.Tickets.
type TicketSource interface {
	Assignee(ctx context.Context, ticketID string) (string, error)
	Status(ctx context.Context, ticketID string) (string, error)
}

// BranchResolver maps a ticket to its branch-project pairs.
// Implemented by *resolve.Resolver.
type BranchResolver interface {
	Resolve(ctx context.Context, ticketID string, qaMode bool) (resolve.BranchProjectMap, error)
}

// AccessRevoker removes a user's access rules across a branch-project
// map. Implemented by *revoke.Revoker.
type AccessRevoker interface {
	Revoke(ctx context.Context, user string, bpm resolve.BranchProjectMap) []model.RevocationOutcome
}

// Pipeline sequences ticket resolution, branch-project mapping, and
// access revocation for a batch of tickets. Tickets are processed one
// at a time; each ticket's failures are scoped to that ticket except
// the designated hard-stop conditions.
type Pipeline struct {
	tickets    TicketSource
	resolver   BranchResolver
	revoker    AccessRevoker
	maxTickets int
	qaMode     bool
	dryRun     bool
	logger     *slog.Logger
}

// New creates a pipeline. maxTickets is the batch ceiling enforced
// before any network I/O.
func New(
	tickets TicketSource,
	resolver BranchResolver,
	revoker AccessRevoker,
	maxTickets int,
	qaMode bool,
	dryRun bool,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		tickets:    tickets,
		resolver:   resolver,
		revoker:    revoker,
		maxTickets: maxTickets,
		qaMode:     qaMode,
		dryRun:     dryRun,
		logger:     logger,
	}
}

// Run processes the given tickets in order and returns the run report.
// On a hard stop the report built so far is returned alongside the
// error so the partial work is not lost.
func (p *Pipeline) Run(
	ctx context.Context,
	ticketIDs []string,
) (*model.Report, error) {
	if len(ticketIDs) > p.maxTickets {
		return nil, fmt.Errorf(
			"ticket count %d exceeds the limit of %d per run",
			len(ticketIDs), p.maxTickets,
		)
	}

	report := &model.Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		DryRun:    p.dryRun,
	}

	for i, ticketID := range ticketIDs {
		p.logger.Info("processing ticket",
			"ticket", ticketID, "position", i+1, "total", len(ticketIDs))

		result, err := p.processTicket(ctx, ticketID)
		report.Results = append(report.Results, result)
		if err != nil {
			report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
			return report, err
		}
	}

	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	p.logger.Info("run complete",
		"run_id", report.RunID, "tickets", len(report.Results))
	return report, nil
}

// processTicket runs the full stage sequence for one ticket. The
// returned error is non-nil only for hard-stop conditions; everything
// else is recorded in the result and the caller moves on.
func (p *Pipeline) processTicket(
	ctx context.Context,
	ticketID string,
) (model.TicketResult, error) {
	result := model.TicketResult{
		TicketID:     ticketID,
		UserStatus:   model.StageSkipped,
		BranchStatus: model.StageSkipped,
		AccessStatus: model.StageSkipped,
	}

	// Safety gate: never touch access for a ticket still in flight.
	status, err := p.tickets.Status(ctx, ticketID)
	if err != nil {
		p.logger.Error("status lookup failed", "ticket", ticketID, "error", err)
		result.UserStatus = model.StageFailed
		result.UserError = err.Error()
		return result, nil
	}
	if !terminalStatuses[status] {
		result.UserStatus = model.StageFailed
		result.UserError = fmt.Sprintf("ticket status %q is not terminal", status)
		return result, &HardStopError{
			TicketID: ticketID,
			Reason:   fmt.Sprintf("status %q is not Closed or Resolved", status),
		}
	}

	assignee, err := p.tickets.Assignee(ctx, ticketID)
	if err != nil {
		p.logger.Error("assignee lookup failed", "ticket", ticketID, "error", err)
		result.UserStatus = model.StageFailed
		result.UserError = err.Error()
		return result, nil
	}
	result.UserStatus = model.StageOK
	result.Assignee = assignee
	p.logger.Info("assignee resolved", "ticket", ticketID, "assignee", assignee)

	bpm, err := p.resolver.Resolve(ctx, ticketID, p.qaMode)
	if err != nil {
		result.BranchStatus = model.StageFailed
		result.BranchError = err.Error()
		if errors.Is(err, jira.ErrNoFixVersions) {
			return result, &HardStopError{
				TicketID: ticketID,
				Reason:   "no fix version to derive a release branch from",
				Err:      err,
			}
		}
		p.logger.Error("branch resolution failed", "ticket", ticketID, "error", err)
		return result, nil
	}
	result.BranchStatus = model.StageOK
	p.logger.Info("branch-project map resolved",
		"ticket", ticketID, "projects", len(bpm))

	result.Outcomes = p.revoker.Revoke(ctx, assignee, bpm)
	result.AccessStatus = model.StageOK
	return result, nil
}
