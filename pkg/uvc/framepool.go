package uvc

import (
	"fmt"
	"sync"
)

// framePool owns the stream's frame buffers: one contiguous arena
// carved into fixed-capacity windows, plus an index free-list. There is
// no allocation in the hot path; acquire and release only move indices.
//
// The pool mutex is the single synchronization point of the engine:
// acquire/markReady/markHeld/recycle run on the consumer context, while
// release may be called from any application goroutine.
type framePool struct {
	mu     sync.Mutex
	arena  []byte
	frames []*Frame
	free   []int // stack of free indices
}

func newFramePool(count, capacity int, format StreamFormat) *framePool {
	p := &framePool{
		arena:  make([]byte, count*capacity),
		frames: make([]*Frame, count),
		free:   make([]int, 0, count),
	}
	for i := 0; i < count; i++ {
		p.frames[i] = &Frame{
			format: format,
			data:   p.arena[i*capacity : (i+1)*capacity : (i+1)*capacity],
			index:  i,
			state:  bufFree,
		}
		p.free = append(p.free, i)
	}
	return p
}

// acquire pops a free buffer and marks it InAssembly. Non-blocking;
// returns nil when every buffer is in flight (the underflow condition).
func (p *framePool) acquire() *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	f := p.frames[idx]
	f.state = bufInAssembly
	f.length = 0
	f.hasPTS = false
	f.pts = 0
	return f
}

// recycle abandons an InAssembly buffer without emitting it (error bit,
// overflow, stream stop).
func (p *framePool) recycle(f *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.state != bufInAssembly {
		return
	}
	p.pushFree(f)
}

// markReady finalizes an InAssembly buffer for delivery.
func (p *framePool) markReady(f *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.state == bufInAssembly {
		f.state = bufReady
	}
}

// markHeld transfers a Ready buffer to the application. Reports whether
// the transfer happened; it does not when the application already
// returned the frame from inside the callback.
func (p *framePool) markHeld(f *Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.state != bufReady {
		return false
	}
	f.state = bufHeld
	return true
}

// release returns a delivered buffer to the free list. Only Ready and
// HeldByApplication buffers are releasable; anything else (double
// release included) is a reported error, never silently accepted.
func (p *framePool) release(f *Frame) error {
	if f == nil {
		return ErrInvalidArg
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.index < 0 || f.index >= len(p.frames) || p.frames[f.index] != f {
		return fmt.Errorf("%w: frame does not belong to this stream", ErrInvalidArg)
	}
	if f.state != bufReady && f.state != bufHeld {
		return fmt.Errorf("%w: buffer is %s", ErrFrameNotHeld, f.state)
	}
	p.pushFree(f)
	return nil
}

// pushFree resets the buffer to a fresh state. Callers hold p.mu.
func (p *framePool) pushFree(f *Frame) {
	f.state = bufFree
	f.length = 0
	f.hasPTS = false
	f.pts = 0
	p.free = append(p.free, f.index)
}

// freeCount reports how many buffers are acquirable.
func (p *framePool) freeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// heldCount reports buffers owned by the application. Close refuses to
// tear the pool down while this is non-zero.
func (p *framePool) heldCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, f := range p.frames {
		if f.state == bufHeld {
			n++
		}
	}
	return n
}
