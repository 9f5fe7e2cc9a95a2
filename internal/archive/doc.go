// Package archive records received envelopes to PostgreSQL for operations
// debugging.
//
// Envelopes are queued by a bus subscriber and written in batches with COPY,
// flushed when a batch fills or on a timer. The archive is write-only: it is
// never read back into a connection.
package archive
