package uvc

import "log/slog"

// assemblerState tracks where the assembler is between frame
// boundaries.
type assemblerState uint8

const (
	asmIdle       assemblerState = iota // no buffer held
	asmAssembling                       // buffer borrowed, accepting bytes
	asmDiscarding                       // dropping bytes until the next boundary
)

// assembler turns the stream of parsed payloads into complete frames.
// It owns the assembly cursor: the in-progress buffer, the expected
// frame-ID toggle value and the discard flag. It runs on the consumer
// context only and needs no locking of its own; the frame pool guards
// the one shared structure.
//
// Every branch recovers to asmIdle or asmDiscarding: no payload
// sequence, however malformed, can wedge the pipeline.
type assembler struct {
	pool   *framePool
	logger *slog.Logger

	// deliver hands a finalized frame to dispatch; notify raises an
	// asynchronous stream event. Both run synchronously.
	deliver func(*Frame)
	notify  func(StreamEvent)

	state    assemblerState
	cur      *Frame
	fid      bool
	fidValid bool
}

func newAssembler(pool *framePool, logger *slog.Logger, deliver func(*Frame), notify func(StreamEvent)) *assembler {
	return &assembler{
		pool:    pool,
		logger:  logger,
		deliver: deliver,
		notify:  notify,
		state:   asmIdle,
	}
}

// push feeds one parsed payload through the boundary state machine.
// The evaluation order is fixed: device error bit, frame-ID toggle,
// buffer borrow, append, end of frame.
func (a *assembler) push(p Payload) {
	// Device flagged this payload bad: the whole current frame is
	// unusable. Drop it and resynchronize on the next toggle.
	if p.Error {
		a.abandon()
		a.fid = p.FrameID
		a.fidValid = true
		a.state = asmDiscarding
		return
	}

	// Frame-ID toggle: the previous frame ended implicitly.
	if a.fidValid && p.FrameID != a.fid {
		a.finishCurrent()
		a.state = asmIdle
	}
	if !a.fidValid || p.FrameID != a.fid {
		a.fid = p.FrameID
		a.fidValid = true
		a.begin()
	}

	switch a.state {
	case asmDiscarding:
		return
	case asmIdle:
		// Same frame ID after an explicit end of frame: trailing
		// payloads of a frame already emitted. Drop them.
		return
	}

	// Append the payload body.
	if len(p.Data) > 0 {
		if a.cur.length == 0 && p.HasPTS {
			a.cur.pts = p.PTS
			a.cur.hasPTS = true
		}
		if !a.cur.appendPayload(p.Data) {
			a.logger.Debug("frame exceeds buffer capacity, discarding",
				"have", a.cur.length, "add", len(p.Data), "cap", a.cur.Cap())
			a.pool.recycle(a.cur)
			a.cur = nil
			a.state = asmDiscarding
			a.notify(OverflowEvent{})
			return
		}
	}

	// Explicit end of frame.
	if p.EndOfFrame {
		a.finishCurrent()
		a.state = asmIdle
	}
}

// begin borrows a buffer for the frame that just started. Without a
// free buffer the whole frame is discarded (underflow).
func (a *assembler) begin() {
	a.cur = a.pool.acquire()
	if a.cur == nil {
		a.logger.Debug("no free frame buffer, discarding frame")
		a.state = asmDiscarding
		a.notify(UnderflowEvent{})
		return
	}
	a.state = asmAssembling
}

// finishCurrent closes out the in-progress frame, whether the boundary
// was an explicit EOF or an implicit toggle. Zero-byte frames are
// dropped silently; truncated frames (toggle without EOF) are emitted
// best-effort: partial data is the device's problem to signal, not
// ours to hide.
func (a *assembler) finishCurrent() {
	if a.state != asmAssembling || a.cur == nil {
		a.cur = nil
		return
	}
	f := a.cur
	a.cur = nil
	if f.length == 0 {
		a.pool.recycle(f)
		return
	}
	a.deliver(f)
}

// abandon drops the in-progress buffer without emitting it.
func (a *assembler) abandon() {
	if a.cur != nil {
		a.pool.recycle(a.cur)
		a.cur = nil
	}
}

// reset clears the cursor when streaming stops; a mid-assembly buffer
// goes back to Free, never leaked.
func (a *assembler) reset() {
	a.abandon()
	a.state = asmIdle
	a.fidValid = false
}
