// Package metrics provides Prometheus metrics for the realtime connection.
//
// Key metrics:
//   - Connection status and active transport
//   - Status transitions and failures per transport
//   - Envelopes received per event
//   - Dropped payloads and recovered panics
package metrics
