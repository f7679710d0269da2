// Package subgraph is a minimal GraphQL client for the remote indexing service.
package subgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// Data is the "data" object of a GraphQL response.
type Data map[string]any

// HTTPError is returned for a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("subgraph http %d: %s", e.StatusCode, e.Body)
}

// GraphQLError is one entry of a response's top-level "errors" list.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLErrors is returned when the response carries an "errors" list.
type GraphQLErrors struct {
	Errors []GraphQLError
}

func (e *GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msgs = append(msgs, item.Message)
	}
	return "subgraph errors: " + strings.Join(msgs, "; ")
}

// IsRemote reports whether err was reported by the remote service rather
// than the transport.
func IsRemote(err error) bool {
	var gqlErr *GraphQLErrors
	return errors.As(err, &gqlErr)
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type response struct {
	Data   Data           `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// Client posts queries to subgraph endpoints. It never retries.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Query issues one POST of {query, variables} and returns the data object.
func (c *Client) Query(ctx context.Context, endpoint, query string, variables map[string]any) (Data, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("subgraph endpoint is empty")
	}
	if variables == nil {
		variables = map[string]any{}
	}

	body, err := sonnet.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post query: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var out response
	if err := sonnet.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, &GraphQLErrors{Errors: out.Errors}
	}
	if out.Data == nil {
		return nil, fmt.Errorf("subgraph response has no data")
	}

	c.logger.Debug("subgraph query",
		zap.String("endpoint", endpoint),
		zap.Int("bytes", len(raw)),
		zap.Duration("took", time.Since(start)),
	)
	return out.Data, nil
}

// QueryWithPagination runs an offset-paginated query, setting the "first"
// and "skip" variables.
func (c *Client) QueryWithPagination(ctx context.Context, endpoint, query string, first, skip int) (Data, error) {
	return c.Query(ctx, endpoint, query, map[string]any{
		"first": first,
		"skip":  skip,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
