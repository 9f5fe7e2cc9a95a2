// Package bus decodes realtime envelopes and fans them out to subscribers.
//
// Every transport delivers the same wire shape:
//
//	{"event": "order_created", "data": {...}}
//
// so consumers subscribe by event name and never learn which transport
// carried a message. Handlers registered with On receive one event name;
// handlers registered with OnAny receive everything. Within a single
// Dispatch, handlers run in the order they were registered, regardless of
// whether they are exact or wildcard.
//
// Dispatch never lets a handler panic escape. Panics and undecodable
// payloads are reported to a Diagnostics sink instead.
package bus
