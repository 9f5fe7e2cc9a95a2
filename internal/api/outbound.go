package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// IdempotencyHeader lets the server collapse retried posts.
const IdempotencyHeader = "Idempotency-Key"

// PostEvent sends one encoded envelope to the outbound endpoint. Calls wait
// on the client's rate limiter, then retry 5xx/429 with jittered backoff
// under a single idempotency key.
func (c *Client) PostEvent(ctx context.Context, rawURL string, payload []byte) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("outbound rate limit: %w", err)
		}
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(IdempotencyHeader, uuid.NewString())

	if _, err := c.doWithRetry(ctx, http.MethodPost, rawURL, payload, header); err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	return nil
}
