package app

import (
	"errors"
	"sync"
	"time"

	"github.com/emmett/sublive/internal/transcript"
)

// Status is the session state shown to bridges
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusPaused       Status = "paused"
	StatusStopped      Status = "stopped"
	StatusError        Status = "error"
)

// ErrHubClosed is returned once the hub has shut down
var ErrHubClosed = errors.New("hub closed")

// StatusInfo is the current status with its message
type StatusInfo struct {
	Status  Status    `json:"status"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since"`
}

// Hub shares the latest snapshot with readers on other goroutines. The
// display loop publishes; bridges read and subscribe.
type Hub struct {
	mu      sync.Mutex
	snap    transcript.Snapshot
	status  StatusInfo
	subs    map[int]chan transcript.Snapshot
	nextID  int
	closed  bool
	resizes chan int
}

// NewHub creates a hub in the connecting state
func NewHub() *Hub {
	return &Hub{
		status:  StatusInfo{Status: StatusConnecting, Since: time.Now()},
		subs:    make(map[int]chan transcript.Snapshot),
		resizes: make(chan int, 1),
	}
}

// Publish stores snap and fans it out. A slow subscriber loses its
// oldest pending snapshot rather than blocking the display loop.
func (h *Hub) Publish(snap transcript.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.snap = snap
	for _, ch := range h.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Snapshot returns the latest published snapshot
func (h *Hub) Snapshot() transcript.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Subscribe returns a channel receiving every published snapshot, starting
// with the current one. cancel must be called to release it.
func (h *Hub) Subscribe(buffer int) (<-chan transcript.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan transcript.Snapshot, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	ch <- h.snap

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// SetStatus records a status change
func (h *Hub) SetStatus(status Status, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Status == status && h.status.Message == msg {
		return
	}
	h.status = StatusInfo{Status: status, Message: msg, Since: time.Now()}
}

// Status returns the current status
func (h *Hub) Status() StatusInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// RequestCapacity asks the display loop to resize the store. Only the
// latest pending request is kept.
func (h *Hub) RequestCapacity(n int) error {
	if n < 1 {
		return errors.New("capacity must be at least 1")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	select {
	case <-h.resizes:
	default:
	}
	h.resizes <- n
	return nil
}

// Resizes delivers capacity requests to the display loop
func (h *Hub) Resizes() <-chan int {
	return h.resizes
}

// Close ends every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
