package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/branch-revoker/internal/source"
)

// Client is a thin HTTP client for the Jira Server/DC REST API v2.
// It handles basic authentication and JSON unmarshaling. Requests are
// issued exactly once; failed calls are not retried.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a new Jira HTTP client. The baseURL should be the
// root URL of the Jira instance (e.g., https://jira.corp.example.com).
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden {
		return &source.AuthError{
			SourceType: source.SourceTypeJira,
			Message: fmt.Sprintf(
				"authentication failed (%d): check credentials for %s",
				resp.StatusCode, c.baseURL,
			),
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return &source.NotFoundError{
			SourceType: source.SourceTypeJira,
			Resource:   path,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var jiraErr ErrorResponse
		if json.Unmarshal(respBody, &jiraErr) == nil &&
			(len(jiraErr.ErrorMessages) > 0 || len(jiraErr.Errors) > 0) {
			return fmt.Errorf(
				"jira API error (%d) on GET %s: %s %v",
				resp.StatusCode, path,
				strings.Join(jiraErr.ErrorMessages, "; "),
				jiraErr.Errors,
			)
		}
		return &source.StatusError{
			SourceType: source.SourceTypeJira,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from GET %s: %w", path, err,
		)
	}

	return nil
}
