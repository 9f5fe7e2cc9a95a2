package transport

import (
	"context"
	"fmt"
	"net/url"
)

// Query parameters of the handshake contract.
const (
	ParamToken   = "token"
	ParamChannel = "channel"
	ParamCursor  = "cursor"
)

// BuildURL adds token, channel and extra to base.
func BuildURL(base, token, channel string, extra url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if token != "" {
		q.Set(ParamToken, token)
	}
	if channel != "" {
		q.Set(ParamChannel, channel)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SessionURL fetches a fresh token and builds the attempt URL.
func SessionURL(ctx context.Context, s Session, extra url.Values) (string, error) {
	var token string
	if s.Tokens != nil {
		t, err := s.Tokens.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("token: %w", err)
		}
		token = t
	}
	return BuildURL(s.URL, token, s.Channel, extra)
}

// RedactURL hides the token query parameter for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	if q.Has(ParamToken) {
		q.Set(ParamToken, "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
