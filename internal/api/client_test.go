package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient()
		assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
		assert.Equal(t, 3, c.maxRetries)
		assert.Equal(t, time.Second, c.retryBackoff)
		assert.NotNil(t, c.logger)
		assert.NotNil(t, c.limiter)
	})

	t.Run("options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{}
		c := NewClient(
			WithHTTPClient(hc),
			WithTimeout(5*time.Second),
			WithRetries(5, 2*time.Second),
			WithLogger(logger),
			WithRateLimit(0, 0),
		)
		assert.Same(t, hc, c.httpClient)
		assert.Equal(t, 5*time.Second, hc.Timeout)
		assert.Equal(t, 5, c.maxRetries)
		assert.Equal(t, 2*time.Second, c.retryBackoff)
		assert.Same(t, logger, c.logger)
		assert.Nil(t, c.limiter)
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		c := NewClient(WithLogger(nil))
		assert.NotNil(t, c.logger)
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		auth      bool
	}{
		{http.StatusBadRequest, false, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusForbidden, false, true},
		{http.StatusNotFound, false, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusServiceUnavailable, true, false},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Message: http.StatusText(tt.status)}
		assert.Equal(t, tt.retryable, err.IsRetryable(), "status %d retryable", tt.status)
		assert.Equal(t, tt.auth, err.IsAuth(), "status %d auth", tt.status)
		assert.Equal(t, tt.auth, IsAuth(err), "status %d IsAuth", tt.status)
		assert.Equal(t, tt.status, StatusCode(err))
	}

	assert.False(t, IsAuth(io.EOF))
	assert.Zero(t, StatusCode(io.EOF))
}

func TestPoll(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		w.Header().Set(CursorHeader, "c-42")
		w.Write([]byte(`[{"event":"order_created","data":{}}]`))
	}))
	defer server.Close()

	c := NewClient()
	res, err := c.Poll(context.Background(), server.URL+"/realtime/poll?channel=shop-1&token=t")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "c-42", res.Cursor)
	assert.JSONEq(t, `[{"event":"order_created","data":{}}]`, string(res.Body))
	assert.Equal(t, "channel=shop-1&token=t", gotQuery)
}

func TestPoll_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	res, err := NewClient().Poll(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Empty(t, res.Body)
}

func TestPoll_DoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(WithRetries(3, time.Millisecond)).Poll(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostEvent_RetriesWithSameIdempotencyKey(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		keys = append(keys, r.Header.Get(IdempotencyHeader))
		bodies = append(bodies, string(body))
		n := len(keys)
		mu.Unlock()

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := NewClient(WithRetries(3, time.Millisecond))
	err := c.PostEvent(context.Background(), server.URL+"/realtime/emit", []byte(`{"event":"typing","data":null}`))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[0], keys[2])
	assert.Equal(t, `{"event":"typing","data":null}`, bodies[2])
}

func TestPostEvent_NonRetryable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewClient(WithRetries(3, time.Millisecond)).PostEvent(context.Background(), server.URL, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostEvent_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewClient(WithRetries(2, time.Millisecond)).PostEvent(context.Background(), server.URL, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostEvent_RateLimitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := NewClient(WithRateLimit(0.001, 1))
	require.NoError(t, c.PostEvent(context.Background(), server.URL, []byte(`{}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.PostEvent(ctx, server.URL, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbound rate limit")
}

func TestPathOf(t *testing.T) {
	assert.Equal(t, "/realtime/poll", pathOf("https://api.example.com/realtime/poll?token=secret"))
	assert.Equal(t, "", pathOf("://bad"))
}
