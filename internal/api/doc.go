// Package api is the HTTP side of the realtime channel: the polling fetch
// used by the polling transport and the outbound REST endpoint used to
// send events when the active transport is receive-only.
//
// Endpoints (relative to the realtime base URL):
//   - GET  /realtime/poll   JSON array of envelopes, cursor in X-Poll-Cursor
//   - POST /realtime/emit   one envelope per request
//
// Both carry token and channel as query parameters, the same handshake
// the streaming transports use.
package api
