package audio

import "sync/atomic"

// DefaultPoolSize matches the depth of the audio channel so every in-flight
// packet can be recycled.
const DefaultPoolSize = 256

// Pool recycles sample buffers between the capture callback and the
// streaming worker so steady-state capture does not allocate per packet.
//
// A buffer belongs to exactly one stage at a time. Recycling is best effort:
// a release that finds the pool full or closed simply drops the buffer.
type Pool struct {
	free   chan []float32
	closed atomic.Bool
}

// NewPool creates a pool holding at most size idle buffers.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{free: make(chan []float32, size)}
}

// Acquire returns an empty buffer. A recycled buffer keeps its capacity;
// otherwise a new one is allocated with room for n samples.
func (p *Pool) Acquire(n int) []float32 {
	select {
	case buf := <-p.free:
		return buf[:0]
	default:
		return make([]float32, 0, n)
	}
}

// Release hands buf back to the pool without blocking.
func (p *Pool) Release(buf []float32) {
	if buf == nil || p.closed.Load() {
		return
	}
	select {
	case p.free <- buf[:0]:
	default:
	}
}

// Close stops recycling and drops all idle buffers. The channel itself is
// never closed, so a late Release from another goroutine cannot panic.
func (p *Pool) Close() {
	p.closed.Store(true)
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}

// Idle reports how many buffers are waiting to be reused.
func (p *Pool) Idle() int {
	return len(p.free)
}
