// Package auth supplies the bearer token presented on every realtime
// handshake and outbound request.
//
// Tokens are short-lived, so a TokenSource is asked again before every
// connection attempt rather than once at startup.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoToken is returned when a source has nothing to offer.
var ErrNoToken = errors.New("no auth token available")

// TokenSource yields the current token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// EnvToken reads the named environment variable on every call.
type EnvToken string

func (e EnvToken) Token(context.Context) (string, error) {
	v := strings.TrimSpace(os.Getenv(string(e)))
	if v == "" {
		return "", fmt.Errorf("%w: $%s is empty", ErrNoToken, string(e))
	}
	return v, nil
}

// FileToken re-reads a token file on every call, so a sidecar that rotates
// the file is picked up on the next connection attempt.
type FileToken struct {
	Path string
}

func (f FileToken) Token(context.Context) (string, error) {
	if f.Path == "" {
		return "", fmt.Errorf("%w: token file path is empty", ErrNoToken)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoToken, f.Path)
	}
	return token, nil
}

// Chain tries each source in order and returns the first token found.
// Errors other than ErrNoToken stop the chain.
func Chain(sources ...TokenSource) TokenSource {
	return TokenFunc(func(ctx context.Context) (string, error) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			token, err := src.Token(ctx)
			if err == nil {
				return token, nil
			}
			if !errors.Is(err, ErrNoToken) {
				return "", err
			}
		}
		return "", ErrNoToken
	})
}
