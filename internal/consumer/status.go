package consumer

import (
	"fmt"
	"sync"
	"time"

	"github.com/convoshop/realtime/internal/connection"
	"github.com/convoshop/realtime/internal/transport"
)

// StatusSource is what a StatusIndicator reads.
type StatusSource interface {
	OnStatusChange(fn connection.StatusObserver) func()
	Status() connection.Status
	Transport() transport.Kind
	Capabilities() transport.Capabilities
}

// Indicator is the display state of the connection.
type Indicator struct {
	Status       connection.Status      `json:"status"`
	Transport    transport.Kind         `json:"transport"`
	Capabilities transport.Capabilities `json:"capabilities"`
	Since        time.Time              `json:"since"`
	Label        string                 `json:"label"`
	Degraded     bool                   `json:"degraded"`
}

// StatusIndicator tracks the latest status for display.
type StatusIndicator struct {
	caps  transport.Capabilities
	unsub func()

	mu      sync.RWMutex
	current Indicator
}

// NewStatusIndicator starts tracking src. Call Stop to detach.
func NewStatusIndicator(src StatusSource) *StatusIndicator {
	s := &StatusIndicator{caps: src.Capabilities()}
	s.set(src.Status(), src.Transport())
	s.unsub = src.OnStatusChange(s.set)
	return s
}

func (s *StatusIndicator) set(status connection.Status, kind transport.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Indicator{
		Status:       status,
		Transport:    kind,
		Capabilities: s.caps,
		Since:        time.Now(),
		Label:        label(status, kind),
		Degraded:     status == connection.StatusConnected && kind != transport.KindWebSocket,
	}
}

// Current returns the latest indicator.
func (s *StatusIndicator) Current() Indicator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Stop detaches from the source.
func (s *StatusIndicator) Stop() {
	if s.unsub != nil {
		s.unsub()
	}
}

func label(status connection.Status, kind transport.Kind) string {
	switch status {
	case connection.StatusConnected:
		switch kind {
		case transport.KindWebSocket:
			return "Live"
		case transport.KindSSE:
			return "Live (streaming)"
		default:
			return fmt.Sprintf("Live (%s)", kind)
		}
	case connection.StatusConnecting:
		return "Connecting"
	case connection.StatusError:
		return "Reconnecting"
	}
	return "Offline"
}
