package debugfiles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/mapcheck/internal/domain/proguard"
	"github.com/okian/mapcheck/pkg/logger"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Client looks up debug files in a remote registry speaking the dsyms API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logger.Logger
}

// NewClient creates a client for the registry at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Find lists the project's files matching q.
func (c *Client) Find(ctx context.Context, q Query) ([]DebugFile, error) {
	u := fmt.Sprintf("%s/api/0/projects/%s/%s/files/dsyms/", c.baseURL,
		url.PathEscape(q.Owner), url.PathEscape(q.Project))
	params := url.Values{}
	if q.Text != "" {
		params.Set("query", q.Text)
	}
	for _, f := range q.Formats {
		params.Add("file_formats", f)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting debug files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var files []DebugFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("decoding debug files: %w", err)
	}
	return files, nil
}

// LookupDebugFiles implements proguard.Lookup.
func (c *Client) LookupDebugFiles(ctx context.Context, req proguard.LookupRequest) proguard.LookupResult {
	return lookup(ctx, c.log, c, req)
}
