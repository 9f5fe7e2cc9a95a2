// Package transport implements the three physical carriers of the realtime
// channel behind one Adapter interface.
//
// Architecture:
//
//	Connection ──Open(Session)──► Adapter ──goroutine──► network
//	     ▲                            │
//	     └──────── Listener ◄─────────┘
//	   (OnOpen/OnMessage/OnError/OnClose/OnActivity)
//
// Adapters:
//   - websocket: bidirectional, gorilla/websocket, ping frames for liveness
//   - sse: receive-only text/event-stream, no automatic reconnect
//   - polling: receive-only GET loop through api.Client, cursor echoed back
//
// An adapter never reconnects by itself. It reports exactly what happened
// through its Listener and leaves retry policy to the connection state
// machine. Listener callbacks always run on adapter goroutines, never
// inside Open or Close, so the caller may hold its own lock across those.
//
// DetectCapabilities decides which kinds are usable before any attempt is
// made; unsupported kinds are pruned from the fallback order silently.
package transport
