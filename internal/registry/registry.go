// Package registry holds the process-wide realtime connection so that any
// number of independent consumers share one physical socket.
package registry

import (
	"sync"

	"github.com/convoshop/realtime/internal/connection"
	"golang.org/x/sync/singleflight"
)

// Factory builds the connection on first use.
type Factory func() (*connection.Connection, error)

// Registry is a swappable holder for one connection. The zero value is
// ready to use.
type Registry struct {
	mu    sync.RWMutex
	conn  *connection.Connection
	group singleflight.Group
}

// Default is the process-wide registry.
var Default = &Registry{}

// Get returns the stored connection, or nil.
func (r *Registry) Get() *connection.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

// Set replaces the stored connection. The previous one is left running;
// the caller owns its shutdown.
func (r *Registry) Set(c *connection.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = c
}

// Reset clears the registry and returns what it held.
func (r *Registry) Reset() *connection.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conn
	r.conn = nil
	return prev
}

// GetOrCreate returns the stored connection, building it with factory if
// there is none. Concurrent callers share a single factory call.
func (r *Registry) GetOrCreate(factory Factory) (*connection.Connection, error) {
	if c := r.Get(); c != nil {
		return c, nil
	}

	v, err, _ := r.group.Do("connection", func() (any, error) {
		if c := r.Get(); c != nil {
			return c, nil
		}
		c, err := factory()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.conn != nil {
			// Set won the race; keep its connection.
			c.Close()
			return r.conn, nil
		}
		r.conn = c
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*connection.Connection), nil
}

// GetGlobalConnection returns the connection held by Default, or nil.
func GetGlobalConnection() *connection.Connection {
	return Default.Get()
}

// SetGlobalConnection stores c in Default.
func SetGlobalConnection(c *connection.Connection) {
	Default.Set(c)
}
