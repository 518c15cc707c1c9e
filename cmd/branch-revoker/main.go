package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"

	"github.com/nhle/branch-revoker/internal/credential"
	"github.com/nhle/branch-revoker/internal/model"
	"github.com/nhle/branch-revoker/internal/pipeline"
	"github.com/nhle/branch-revoker/internal/resolve"
	"github.com/nhle/branch-revoker/internal/revoke"
	"github.com/nhle/branch-revoker/internal/source/gitlab"
	"github.com/nhle/branch-revoker/internal/source/jira"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "branch-revoker: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	gitlabToken  string
	jiraPassword string
	jiraList     string
	filterID     string
	qaMode       bool
	dryRun       bool
	yes          bool
	reportPath   string
	logDir       string

	allRepos bool
	branches []string
	groups   []string
}

func parseFlags() (*options, error) {
	opts := &options{}
	flags := pflag.NewFlagSet("branch-revoker", pflag.ContinueOnError)

	flags.StringVar(&opts.configPath, "config", model.DefaultConfigPath(),
		"path to the YAML configuration file")
	flags.StringVarP(&opts.gitlabToken, "gitlab-token", "g", "",
		"GitLab private token (falls back to the system keyring)")
	flags.StringVar(&opts.jiraPassword, "jira-password", "",
		"Jira basic-auth password (falls back to the system keyring)")
	flags.StringVarP(&opts.jiraList, "jira-list", "j", "",
		"comma-separated list of Jira IDs (e.g., DEV-1,DEV-2)")
	flags.StringVarP(&opts.filterID, "filter-id", "f", "",
		"Jira filter ID to fetch the ticket list from")
	flags.BoolVar(&opts.qaMode, "qa", false,
		"QA repo tickets only: disables the DEV default-repo fallback")
	flags.BoolVar(&opts.dryRun, "dry-run", false,
		"report matching rules without removing them")
	flags.BoolVarP(&opts.yes, "yes", "y", false,
		"skip the confirmation prompt")
	flags.StringVar(&opts.reportPath, "report", "",
		"path for the JSON run report (default: run_report_<timestamp>.json)")
	flags.StringVar(&opts.logDir, "log-dir", ".",
		"directory for the timestamped run log file")
	flags.BoolVar(&opts.allRepos, "all", false,
		"bulk mode: strip every user-scoped rule on the given branches")
	flags.StringSliceVarP(&opts.branches, "branch", "b", nil,
		"release branch short-name for bulk mode (repeatable)")
	flags.StringSliceVar(&opts.groups, "group", nil,
		"repo group from config to sweep in bulk mode (repeatable)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	return opts, nil
}

func run() error {
	opts, err := parseFlags()
	if err != nil {
		return err
	}

	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(opts.logDir)
	if err != nil {
		return err
	}
	defer closeLog()

	token := opts.gitlabToken
	if token == "" {
		token, err = credential.Get(credential.KeyGitLabToken)
		if err != nil {
			return fmt.Errorf(
				"no GitLab token: pass --gitlab-token or store one "+
					"in the keyring as %q: %w",
				credential.KeyGitLabToken, err,
			)
		}
	}

	ctx := context.Background()
	gitlabClient := gitlab.NewClient(cfg.GitLab.BaseURL, token)
	revoker := revoke.NewRevoker(gitlabClient, opts.dryRun, logger)

	if opts.allRepos {
		return runBulk(ctx, opts, cfg, revoker, logger)
	}
	return runTickets(ctx, opts, cfg, gitlabClient, revoker, logger)
}

// runTickets is the standard mode: correlate each Jira ticket with its
// merge requests and revoke the assignee's branch access.
func runTickets(
	ctx context.Context,
	opts *options,
	cfg *model.Config,
	gitlabClient *gitlab.Client,
	revoker *revoke.Revoker,
	logger *slog.Logger,
) error {
	if (opts.jiraList == "") == (opts.filterID == "") {
		return fmt.Errorf(
			"exactly one of --jira-list and --filter-id is required",
		)
	}

	jiraPassword := opts.jiraPassword
	if jiraPassword == "" {
		var err error
		jiraPassword, err = credential.Get(credential.KeyJiraPassword)
		if err != nil {
			return fmt.Errorf(
				"no Jira password: pass --jira-password or store one "+
					"in the keyring as %q: %w",
				credential.KeyJiraPassword, err,
			)
		}
	}

	tickets := jira.NewTickets(
		cfg.Jira.BaseURL, cfg.Jira.Username, jiraPassword,
	)

	ticketIDs, err := ticketList(ctx, opts, tickets, logger)
	if err != nil {
		return err
	}
	if len(ticketIDs) == 0 {
		logger.Warn("no tickets to process")
		return nil
	}
	logger.Info("ticket list resolved",
		"count", len(ticketIDs), "tickets", ticketIDs)

	if err := confirmDestructive(opts, fmt.Sprintf(
		"Revoke branch access for the assignees of %d ticket(s)?",
		len(ticketIDs),
	)); err != nil {
		return err
	}

	resolver := resolve.NewResolver(
		gitlabClient, tickets, cfg.DefaultRepos, logger,
	)
	pipe := pipeline.New(
		tickets, resolver, revoker,
		cfg.MaxTickets, opts.qaMode, opts.dryRun, logger,
	)

	report, runErr := pipe.Run(ctx, ticketIDs)
	if report != nil {
		path := opts.reportPath
		if path == "" {
			path = fmt.Sprintf(
				"run_report_%s.json", time.Now().Format("20060102_150405"),
			)
		}
		if err := pipeline.WriteReport(path, report); err != nil {
			logger.Error("writing report failed", "error", err)
		} else {
			logger.Info("report written", "path", path)
		}
	}

	// Per-ticket failures are recorded in the report; only a hard stop
	// or the ticket ceiling fails the process.
	return runErr
}

// runBulk is the sweep mode: strip every user-scoped rule on the given
// branches across the configured repo groups.
func runBulk(
	ctx context.Context,
	opts *options,
	cfg *model.Config,
	revoker *revoke.Revoker,
	logger *slog.Logger,
) error {
	if len(opts.branches) == 0 || len(opts.groups) == 0 {
		return fmt.Errorf(
			"bulk mode requires at least one --branch and one --group",
		)
	}

	var repos []model.DefaultRepo
	for _, group := range opts.groups {
		groupRepos, ok := cfg.RepoGroups[group]
		if !ok {
			return fmt.Errorf("unknown repo group %q in config", group)
		}
		repos = append(repos, groupRepos...)
	}

	if err := confirmDestructive(opts, fmt.Sprintf(
		"Strip ALL user access rules on branches %s across %d repo(s)?",
		strings.Join(opts.branches, ", "), len(repos),
	)); err != nil {
		return err
	}

	outcomes := revoker.RevokeAll(ctx, opts.branches, repos)
	for _, outcome := range outcomes {
		logger.Info("bulk outcome",
			"project", outcome.ProjectID, "branch", outcome.Branch,
			"outcome", outcome.Kind)
	}
	return nil
}

// ticketList resolves the ticket IDs either from the comma-separated
// flag or from a saved Jira filter.
func ticketList(
	ctx context.Context,
	opts *options,
	tickets *jira.Tickets,
	logger *slog.Logger,
) ([]string, error) {
	if opts.filterID != "" {
		logger.Info("fetching tickets from filter", "filter", opts.filterID)
		return tickets.FilterIssueKeys(ctx, opts.filterID)
	}

	var ids []string
	for _, id := range strings.Split(opts.jiraList, ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids, nil
}

// confirmDestructive prompts before a destructive run. Dry runs and
// --yes skip the prompt.
func confirmDestructive(opts *options, title string) error {
	if opts.dryRun || opts.yes {
		return nil
	}

	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description("This removes protected-branch rules on GitLab.").
			Affirmative("Revoke").
			Negative("Abort").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return fmt.Errorf("confirmation prompt: %w", err)
	}
	if !confirmed {
		return fmt.Errorf("aborted by user")
	}
	return nil
}

// setupLogging writes log lines to both stderr and a timestamped run
// log file, mirroring where operators have historically looked for
// revocation history.
func setupLogging(logDir string) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %s: %w", logDir, err)
	}

	name := fmt.Sprintf(
		"access_revoke_%s.log", time.Now().Format("20060102_150405"),
	)
	logFile, err := os.Create(filepath.Join(logDir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("creating log file: %w", err)
	}

	handler := slog.NewTextHandler(
		io.MultiWriter(os.Stderr, logFile),
		&slog.HandlerOptions{Level: slog.LevelInfo},
	)
	logger := slog.New(handler)
	return logger, func() { logFile.Close() }, nil
}
