package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"testing"

	"github.com/convoshop/realtime/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("https://rt.example.com/realtime/poll?v=2", "tok", "shop-1", url.Values{ParamCursor: {"c9"}})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/realtime/poll", u.Path)
	assert.Equal(t, "tok", u.Query().Get(ParamToken))
	assert.Equal(t, "shop-1", u.Query().Get(ParamChannel))
	assert.Equal(t, "c9", u.Query().Get(ParamCursor))
	assert.Equal(t, "2", u.Query().Get("v"))

	got, err = BuildURL("https://rt.example.com/x", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://rt.example.com/x", got)

	_, err = BuildURL("://nope", "", "", nil)
	assert.Error(t, err)
}

func TestSessionURL_TokenFailure(t *testing.T) {
	boom := errors.New("vault sealed")
	s := Session{
		URL:    "https://rt.example.com",
		Tokens: auth.TokenFunc(func(context.Context) (string, error) { return "", boom }),
	}
	_, err := SessionURL(context.Background(), s, nil)
	assert.ErrorIs(t, err, boom)
}

func TestRedactURL(t *testing.T) {
	redacted := RedactURL("wss://rt.example.com/ws?channel=c&token=super-secret")
	assert.NotContains(t, redacted, "super-secret")
	assert.Contains(t, redacted, "channel=c")

	assert.Equal(t, "https://rt.example.com/ws", RedactURL("https://rt.example.com/ws"))
}

func TestHandshakeError(t *testing.T) {
	err := newHandshakeError(KindSSE, 401, errors.New("Unauthorized"))
	assert.True(t, IsAuth(err))
	assert.Contains(t, err.Error(), "status 401")

	wrapped := errors.Join(errors.New("ctx"), newHandshakeError(KindWebSocket, 503, nil))
	assert.False(t, IsAuth(wrapped))

	var ce error = &CloseError{Kind: KindWebSocket, Code: 4001}
	assert.ErrorIs(t, ce, ErrStreamEnded)
}

func TestTokenError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		auth bool
	}{
		{name: "no token", err: auth.ErrNoToken, auth: true},
		{name: "empty env var", err: fmt.Errorf("token: %w", fmt.Errorf("%w: $RT_TOKEN is empty", auth.ErrNoToken)), auth: true},
		{name: "unreadable file", err: fmt.Errorf("token: read token file: %w", os.ErrPermission)},
		{name: "token service down", err: errors.New("token: dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := tokenError(KindPolling, tt.err)
			assert.Equal(t, tt.auth, IsAuth(he))
			assert.Zero(t, he.StatusCode)
			assert.ErrorIs(t, he, tt.err)
		})
	}
}
