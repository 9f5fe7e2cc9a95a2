// Package connection is the realtime connection state machine: one logical
// connection that walks a fallback order of transports, retries with
// exponential backoff, watches liveness with a heartbeat, and fans decoded
// envelopes out through an event bus.
//
// Lifecycle:
//
//	              Connect/Reconnect/ForceTransport
//	disconnected ────────────────────────────────► connecting
//	     ▲                                          │      ▲
//	     │ Disconnect                       OnOpen  │      │ retry timer
//	     │                                          ▼      │
//	     └──────────────────────────────────── connected ──┴── error
//	                                              failure ──►
//
// Failure policy: the same transport is retried with delay
// min(ReconnectDelay*2^n, MaxReconnectDelay) until ReconnectAttempts
// consecutive failures, then the next transport of the cyclic fallback
// order is tried at the base delay. Retries never give up; Disconnect
// is the only way to stop them.
//
// Concurrency: a single mutex serializes transitions. Adapter callbacks,
// retry timers and heartbeats are bound to the attempt generation that
// created them and are ignored once it changes. Status changes, errors
// and envelopes are queued in order and delivered by one dispatcher
// goroutine, so observers and handlers may call back into the Connection.
package connection
