package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/convoshop/realtime/internal/auth"
)

var (
	// ErrUnknownTransport is returned for a kind that is not websocket,
	// sse or polling.
	ErrUnknownTransport = errors.New("unknown transport")

	// ErrPollFailed is reported once consecutive poll failures reach the
	// configured threshold.
	ErrPollFailed = errors.New("polling failed")

	// ErrStreamEnded is wrapped by CloseError for a server-side close.
	ErrStreamEnded = errors.New("stream ended")
)

// HandshakeError is a failed connection attempt before the transport was
// established. Unauthorized is set for 401/403 and when no token could be
// found. Other token lookup failures (an unreadable file, a broken token
// service) are not auth failures.
type HandshakeError struct {
	Kind         Kind
	StatusCode   int
	Unauthorized bool
	Err          error
}

func newHandshakeError(kind Kind, status int, err error) *HandshakeError {
	return &HandshakeError{
		Kind:         kind,
		StatusCode:   status,
		Unauthorized: status == http.StatusUnauthorized || status == http.StatusForbidden,
		Err:          err,
	}
}

// tokenError reports a failed token lookup before any dial.
func tokenError(kind Kind, err error) *HandshakeError {
	he := newHandshakeError(kind, 0, err)
	he.Unauthorized = errors.Is(err, auth.ErrNoToken)
	return he
}

func (e *HandshakeError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s handshake: status %d: %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s handshake: status %d", e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("%s handshake: %v", e.Kind, e.Err)
	}
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// IsAuth reports whether err is an authentication failure at handshake.
func IsAuth(err error) bool {
	var he *HandshakeError
	return errors.As(err, &he) && he.Unauthorized
}

// CloseError is how a connection records an adapter's OnClose report.
type CloseError struct {
	Kind Kind
	Code int
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("%s closed with code %d", e.Kind, e.Code)
}

func (e *CloseError) Unwrap() error { return ErrStreamEnded }
