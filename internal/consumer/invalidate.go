package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/convoshop/realtime/internal/bus"
)

// Refresher reloads one cached resource. id is empty when the event does
// not name a specific record.
type Refresher interface {
	Refresh(ctx context.Context, resource, id string) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, resource, id string) error

func (f RefresherFunc) Refresh(ctx context.Context, resource, id string) error {
	return f(ctx, resource, id)
}

// Rule maps an event to the cached resource it makes stale.
type Rule struct {
	Event    string
	Resource string
	IDField  string // field of data naming the record; default "id"
}

// DefaultRules covers the dashboard's server-pushed events.
func DefaultRules() []Rule {
	return []Rule{
		{Event: "order_created", Resource: "orders"},
		{Event: "order_updated", Resource: "orders"},
		{Event: "payment_updated", Resource: "orders", IDField: "order_id"},
		{Event: "message_new", Resource: "conversations", IDField: "conversation_id"},
		{Event: "conversation_updated", Resource: "conversations"},
	}
}

// Invalidator refreshes cached resources when matching events arrive.
// An envelope replayed inside Window (same event, record and payload) is
// dropped, so a delivery repeated around a transport switch refreshes once.
// A changed payload for the same record always refreshes.
type Invalidator struct {
	refresher Refresher
	rules     map[string][]Rule
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	seen map[seenKey]time.Time
}

type seenKey struct {
	event    string
	resource string
	id       string
	digest   uint64
}

// InvalidatorOption configures an Invalidator.
type InvalidatorOption func(*Invalidator)

// WithWindow sets the de-duplication window. Zero disables it.
func WithWindow(d time.Duration) InvalidatorOption {
	return func(inv *Invalidator) { inv.window = d }
}

// WithInvalidatorLogger sets the logger.
func WithInvalidatorLogger(logger *slog.Logger) InvalidatorOption {
	return func(inv *Invalidator) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// NewInvalidator builds an invalidator for rules.
func NewInvalidator(refresher Refresher, rules []Rule, opts ...InvalidatorOption) *Invalidator {
	inv := &Invalidator{
		refresher: refresher,
		rules:     make(map[string][]Rule),
		window:    2 * time.Second,
		logger:    slog.Default(),
		now:       time.Now,
		seen:      make(map[seenKey]time.Time),
	}
	for _, r := range rules {
		if r.IDField == "" {
			r.IDField = "id"
		}
		inv.rules[r.Event] = append(inv.rules[r.Event], r)
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Attach subscribes to every rule event until ctx is done. The returned
// func detaches early.
func (inv *Invalidator) Attach(ctx context.Context, src Subscriber) func() {
	var unsubs []func()
	for event := range inv.rules {
		unsubs = append(unsubs, Bind(ctx, src, event, func(env bus.Envelope) {
			inv.Handle(ctx, env)
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handle applies the rules for env. Returns the number of refreshes made.
func (inv *Invalidator) Handle(ctx context.Context, env bus.Envelope) int {
	rules := inv.rules[env.Event]
	if len(rules) == 0 {
		return 0
	}

	digest := payloadDigest(env.Data)
	refreshed := 0
	for _, rule := range rules {
		id := extractID(env.Data, rule.IDField)
		if !inv.first(seenKey{event: env.Event, resource: rule.Resource, id: id, digest: digest}) {
			continue
		}
		if err := inv.refresher.Refresh(ctx, rule.Resource, id); err != nil {
			inv.logger.Warn("cache refresh failed",
				"event", env.Event,
				"resource", rule.Resource,
				"id", id,
				"err", err,
			)
			continue
		}
		refreshed++
	}
	return refreshed
}

// first records the key and reports whether it was outside the window.
func (inv *Invalidator) first(key seenKey) bool {
	if inv.window <= 0 || key.id == "" {
		return true
	}

	now := inv.now()

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if at, ok := inv.seen[key]; ok && now.Sub(at) < inv.window {
		return false
	}
	inv.seen[key] = now

	if len(inv.seen) > 1024 {
		for k, at := range inv.seen {
			if now.Sub(at) >= inv.window {
				delete(inv.seen, k)
			}
		}
	}
	return true
}

// payloadDigest hashes data with insignificant whitespace removed.
func payloadDigest(data json.RawMessage) uint64 {
	var buf bytes.Buffer
	if json.Compact(&buf, data) != nil {
		return xxhash.Sum64(data)
	}
	return xxhash.Sum64(buf.Bytes())
}

// extractID reads a string or number field from a JSON object.
func extractID(data json.RawMessage, field string) string {
	var obj map[string]json.RawMessage
	if json.Unmarshal(data, &obj) != nil {
		return ""
	}
	raw, ok := obj[field]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return string(raw)
	}
	return ""
}
