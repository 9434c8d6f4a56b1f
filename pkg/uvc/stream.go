package uvc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// streamState is the lifecycle state of a Stream.
type streamState uint8

const (
	stateOpened streamState = iota
	stateStreaming
	stateStopping
	stateStopped
	stateGone // device disconnected, only Close is valid
	stateClosed
)

func (s streamState) String() string {
	switch s {
	case stateOpened:
		return "opened"
	case stateStreaming:
		return "streaming"
	case stateStopping:
		return "stopping"
	case stateStopped:
		return "stopped"
	case stateGone:
		return "disconnected"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Defaults applied by OpenStream for zero-valued StreamConfig fields.
const (
	DefaultFrameBuffers  = 3
	DefaultTransferSlots = 3
	DefaultTransferBytes = 10 * 1024
)

// StreamConfig describes one camera stream to open.
type StreamConfig struct {
	// Device selects the camera function; zero fields match any.
	Device DeviceFilter

	// Format is the requested resolution, frame rate and coding.
	// Zero fields act as wildcards for negotiation.
	Format StreamFormat

	// OnFrame receives completed frames. Required.
	OnFrame FrameCallback

	// OnEvent receives asynchronous notifications. Optional.
	OnEvent EventCallback

	// FrameBuffers is the number of frame buffers. These are large:
	// each must hold a full frame. Default 3.
	FrameBuffers int

	// FrameBytes is the capacity of one frame buffer. 0 derives it
	// from the negotiated dwMaxVideoFrameSize, which can be
	// generous; set explicitly to bound memory.
	FrameBytes int

	// TransferSlots is the number of in-flight transfers. Triple
	// buffering is a sensible floor. Default 3.
	TransferSlots int

	// TransferBytes is the size of one transfer slot. Larger slots
	// mean fewer completions per frame. Default 10 KiB.
	TransferBytes int
}

// Stream is one opened camera function: the frame buffer pool, the
// transfer pool, the assembly cursor and the lifecycle state. The
// application owns it exclusively through this handle and must Close it
// to release the device.
type Stream struct {
	drv       *Driver
	transport Transport
	cfg       StreamConfig
	neg       Negotiation
	logger    *slog.Logger

	pool  *framePool
	slots *transferPool
	asm   *assembler

	mu       sync.Mutex
	state    streamState
	inFlight int
	quiesced chan struct{} // closed when stopping and inFlight drains to 0

	frames uint64 // delivered frame count, consumer context only
}

// Format returns the negotiated stream format.
func (s *Stream) Format() StreamFormat { return s.neg.Format }

// Negotiation returns the transport's negotiation result.
func (s *Stream) Negotiation() Negotiation { return s.neg }

// Info describes the device this stream captures from.
func (s *Stream) Info() DeviceInfo { return s.transport.Info() }

// State returns the lifecycle state name, for diagnostics.
func (s *Stream) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}

// FramesDelivered returns the number of frames handed to the callback
// since the stream was opened.
func (s *Stream) FramesDelivered() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// FreeBuffers returns the number of currently acquirable frame buffers.
func (s *Stream) FreeBuffers() int { return s.pool.freeCount() }

// Start begins streaming: every transfer slot is submitted and frames
// start arriving at the callback. Valid from opened or stopped.
func (s *Stream) Start() error {
	s.mu.Lock()
	switch s.state {
	case stateOpened, stateStopped:
	case stateGone:
		s.mu.Unlock()
		return ErrDisconnected
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: start while %s", ErrInvalidState, s.state)
	}
	s.state = stateStreaming
	s.quiesced = make(chan struct{})
	s.mu.Unlock()

	submitted, err := s.slots.submitAll(s.transport)
	s.mu.Lock()
	s.inFlight += submitted
	if err != nil {
		s.state = stateStopped
		if s.inFlight == 0 {
			close(s.quiesced)
		}
		s.mu.Unlock()
		return fmt.Errorf("submitting transfers: %w", err)
	}
	s.mu.Unlock()

	s.logger.Info("stream started", "format", s.neg.Format.String(),
		"slots", s.slots.count(), "frame_buffers", len(s.pool.frames))
	return nil
}

// Stop quiesces the stream: in-flight transfers are cancelled and
// drained, the assembly cursor is cleared, frame buffers stay
// allocated. In polling mode Stop pumps events itself, so it may be
// called from the same goroutine that drives HandleEvents.
func (s *Stream) Stop() error {
	s.mu.Lock()
	switch s.state {
	case stateStreaming:
	case stateGone:
		s.mu.Unlock()
		return ErrDisconnected
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: stop while %s", ErrInvalidState, s.state)
	}
	s.state = stateStopping
	quiesced := s.quiesced
	drained := s.inFlight == 0
	s.mu.Unlock()

	if err := s.transport.CancelAll(); err != nil {
		s.logger.Warn("cancelling transfers", "error", err)
	}

	if !drained {
		if s.drv.background() {
			select {
			case <-quiesced:
			case <-time.After(5 * time.Second):
				s.logger.Warn("timeout draining transfers")
			}
		} else {
			deadline := time.Now().Add(5 * time.Second)
			for !s.isQuiesced() && time.Now().Before(deadline) {
				_ = s.drv.pumpOne(50 * time.Millisecond)
			}
		}
	}

	s.asm.reset()

	s.mu.Lock()
	if s.state == stateStopping {
		s.state = stateStopped
	}
	s.mu.Unlock()
	s.logger.Info("stream stopped")
	return nil
}

// Close releases the device and frees all buffers. It refuses while
// streaming, and while the application still holds delivered frames:
// every frame must come back through ReturnFrame first.
func (s *Stream) Close() error {
	s.mu.Lock()
	switch s.state {
	case stateOpened, stateStopped, stateGone:
	case stateClosed:
		s.mu.Unlock()
		return fmt.Errorf("%w: already closed", ErrInvalidState)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: close while %s", ErrInvalidState, s.state)
	}
	if held := s.pool.heldCount(); held > 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrFramesOutstanding, held)
	}
	s.state = stateClosed
	s.mu.Unlock()

	err := s.transport.Close()
	s.drv.forget(s)
	s.logger.Info("stream closed")
	if err != nil {
		return fmt.Errorf("closing transport: %w", err)
	}
	return nil
}

// ReturnFrame gives a delivered frame back to the driver, making its
// buffer acquirable again. Safe to call from any goroutine, including
// the frame callback itself. Returning a frame twice is an error.
func (s *Stream) ReturnFrame(f *Frame) error {
	return s.pool.release(f)
}

func (s *Stream) isQuiesced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight == 0
}

// handleResult processes one transfer completion on the consumer
// context: parse, assemble, resubmit. The slot is retired only after
// all of that, so a drained stream implies the consumer has finished
// touching the assembly cursor.
func (s *Stream) handleResult(r TransferResult) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	defer s.retireSlot(r.Slot)

	switch r.Status {
	case TransferNoDevice:
		s.disconnected()
		return
	case TransferCancelled:
		return
	case TransferFailed:
		s.logger.Debug("transfer error", "error", r.Err)
		s.notify(TransferErrorEvent{Err: r.Err})
		// Transport errors are not fatal; keep the pipeline fed.
	case TransferCompleted:
		if state == stateStreaming && r.Length > 0 {
			s.consume(r)
		}
	}

	if state == stateStreaming && r.Slot != NoSlot {
		s.resubmit(r.Slot)
	}
}

// retireSlot retires one in-flight transfer. Stop's drain waits for
// this, not just for the completion to arrive, so it never resets the
// assembler under a running consume.
func (s *Stream) retireSlot(slot int) {
	if slot == NoSlot {
		return
	}
	s.mu.Lock()
	s.inFlight--
	if s.inFlight == 0 && (s.state == stateStopping || s.state == stateGone) && s.quiesced != nil {
		select {
		case <-s.quiesced:
		default:
			close(s.quiesced)
		}
	}
	s.mu.Unlock()
}

// consume parses one completed transfer and feeds the assembler.
// Malformed headers discard the current frame and resynchronize on the
// next boundary; they never fail the stream.
func (s *Stream) consume(r TransferResult) {
	buf := s.slots.buf(r.Slot)
	if buf == nil || r.Length > len(buf) {
		s.logger.Warn("completion does not match a slot", "slot", r.Slot, "length", r.Length)
		return
	}
	p, err := ParsePayload(buf[:r.Length])
	if err != nil {
		s.logger.Debug("malformed payload", "error", err)
		s.asm.abandon()
		s.asm.state = asmDiscarding
		return
	}
	if len(p.Data) == 0 && !p.EndOfFrame && !p.Error {
		// Header-only keepalive; nothing to do.
		return
	}
	s.asm.push(p)
}

func (s *Stream) resubmit(slot int) {
	s.mu.Lock()
	if s.state != stateStreaming {
		s.mu.Unlock()
		return
	}
	s.inFlight++
	s.mu.Unlock()

	if err := s.transport.Submit(slot, s.slots.buf(slot)); err != nil {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
		s.logger.Warn("resubmit failed", "slot", slot, "error", err)
		s.notify(TransferErrorEvent{Err: err})
	}
}

// dispatchFrame delivers a finalized frame. The ownership result
// decides custody: Accepted hands the buffer to the application,
// PendingReturn keeps it driver-tracked. Either way the buffer is out
// of rotation until ReturnFrame.
func (s *Stream) dispatchFrame(f *Frame) {
	s.pool.markReady(f)
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()

	if s.cfg.OnFrame(f) == FrameAccepted {
		// No-op when the callback already returned the frame.
		s.pool.markHeld(f)
	}
}

func (s *Stream) notify(ev StreamEvent) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}

// disconnected collapses the stream to its terminal state and tells the
// application once.
func (s *Stream) disconnected() {
	s.mu.Lock()
	if s.state == stateGone || s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = stateGone
	if prev == stateStopping && s.inFlight == 0 && s.quiesced != nil {
		// Stop may be waiting on the drain.
		select {
		case <-s.quiesced:
		default:
			close(s.quiesced)
		}
	}
	s.mu.Unlock()

	if prev != stateStopping {
		// A concurrent Stop owns the cursor reset once it is stopping.
		s.asm.reset()
	}
	s.logger.Warn("device disconnected")
	s.notify(DisconnectedEvent{})
}
