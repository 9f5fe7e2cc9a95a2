// Package database opens the optional PostgreSQL pool used by the envelope
// archive.
package database
