package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/branch-revoker/internal/source"
)

// Client is a thin HTTP client for the GitLab REST API v4. It
// authenticates with a private token via the PRIVATE-TOKEN header.
// Requests are issued exactly once; failed calls are not retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new GitLab HTTP client. The baseURL should be
// the API root (e.g., https://gitlab.corp.example.com/api/v4). The
// token is a private token with API scope.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
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
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Patch performs an HTTP PATCH request with a JSON body and
// unmarshals the JSON response.
func (c *Client) Patch(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// do is the core HTTP method that builds the request, handles auth,
// and JSON (de)serialization. 404 responses become NotFoundError and
// other non-2xx responses become StatusError so callers can branch on
// them without string matching.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &source.AuthError{
			SourceType: source.SourceTypeGitLab,
			Message: fmt.Sprintf(
				"authentication failed (401): check your "+
					"private token for %s", c.baseURL,
			),
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return &source.NotFoundError{
			SourceType: source.SourceTypeGitLab,
			Resource:   path,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &source.StatusError{
			SourceType: source.SourceTypeGitLab,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w", method, path, err,
		)
	}

	return nil
}
