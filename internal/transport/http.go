// Package transport implements the remote sync contract over HTTP/JSON.
// The shape mirrors what the backend exposes: a per-table push endpoint
// returning per-row results, and a cursor-paginated pull endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tandemapp/tandem/internal/store"
	"github.com/tandemapp/tandem/internal/syncer"
)

// TokenSource supplies the current bearer token; it is a func so token
// refresh happens outside the transport.
type TokenSource func() string

// HTTPClient talks JSON to the sync backend:
//
//	POST {base}/v1/sync/{table}/push          {"rows": [...]}
//	GET  {base}/v1/sync/{table}/pull?cursor=&limit=
type HTTPClient struct {
	baseURL string
	token   TokenSource
	http    *http.Client
}

func NewHTTPClient(baseURL string, token TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

var _ syncer.Transport = (*HTTPClient)(nil)

type pushRequest struct {
	Rows []*store.Record `json:"rows"`
}

type pushResponse struct {
	Results []syncer.PushResult `json:"results"`
}

// PushBatch sends pending rows upstream and returns the per-row results.
func (c *HTTPClient) PushBatch(ctx context.Context, table store.Table, rows []*store.Record) ([]syncer.PushResult, error) {
	body, err := json.Marshal(pushRequest{Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("marshal push batch: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/sync/%s/push", c.baseURL, table.Name())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp pushResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("push %s: %w", table, err)
	}
	return resp.Results, nil
}

// PullPage fetches one page of remote rows at the given cursor.
func (c *HTTPClient) PullPage(ctx context.Context, table store.Table, cursor string, limit int) (*syncer.Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	q.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/v1/sync/%s/pull?%s", c.baseURL, table.Name(), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build pull request: %w", err)
	}

	var page syncer.Page
	if err := c.do(req, &page); err != nil {
		return nil, fmt.Errorf("pull %s: %w", table, err)
	}
	return &page, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
