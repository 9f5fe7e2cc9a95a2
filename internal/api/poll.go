package api

import (
	"context"
	"net/http"
)

// CursorHeader carries the server's resume cursor on poll responses.
const CursorHeader = "X-Poll-Cursor"

// PollResult is one successful poll round-trip.
type PollResult struct {
	StatusCode int
	Body       []byte // JSON array of envelopes; empty on 204
	Cursor     string
}

// Poll performs one GET against rawURL without retries; the polling
// transport counts consecutive failures itself.
func (c *Client) Poll(ctx context.Context, rawURL string) (*PollResult, error) {
	header := http.Header{}
	header.Set("Cache-Control", "no-cache")

	resp, err := c.doRequest(ctx, http.MethodGet, rawURL, nil, header)
	if err != nil {
		return nil, err
	}

	result := &PollResult{
		StatusCode: resp.status,
		Cursor:     resp.header.Get(CursorHeader),
	}
	if resp.status != http.StatusNoContent {
		result.Body = resp.body
	}
	return result, nil
}
