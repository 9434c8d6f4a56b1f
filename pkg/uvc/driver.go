package uvc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DriverConfig configures an installed driver instance.
type DriverConfig struct {
	// Opener locates and opens camera functions. Required.
	Opener TransportOpener

	// BackgroundTask selects the consumer mode: true spawns a
	// goroutine that drains completions; false leaves the pumping
	// to the application via HandleEvents. Fixed for the driver's
	// lifetime.
	BackgroundTask bool

	// CompletionQueue is the capacity of the shared completion
	// queue. Default 64.
	CompletionQueue int

	// Logger for the driver and its streams. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// pending couples a transfer result with the stream it belongs to on
// the driver's shared completion queue.
type pending struct {
	stream *Stream
	result TransferResult
}

// Driver is an installed UVC host driver instance. One consumer
// context, either the background goroutine or the application's pump
// thread, drains all streams' transfer completions in arrival order and
// drives assembly and dispatch, so neither needs internal locking.
type Driver struct {
	cfg         DriverConfig
	logger      *slog.Logger
	completions chan pending

	mu        sync.Mutex
	streams   map[*Stream]struct{}
	installed bool

	stopBG chan struct{}
	wg     sync.WaitGroup
}

// Install creates a driver instance. With BackgroundTask set the
// consumer goroutine starts immediately; otherwise the application must
// call HandleEvents periodically.
func Install(cfg DriverConfig) (*Driver, error) {
	if cfg.Opener == nil {
		return nil, fmt.Errorf("%w: nil Opener", ErrInvalidArg)
	}
	if cfg.CompletionQueue <= 0 {
		cfg.CompletionQueue = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Driver{
		cfg:         cfg,
		logger:      logger,
		completions: make(chan pending, cfg.CompletionQueue),
		streams:     make(map[*Stream]struct{}),
		installed:   true,
		stopBG:      make(chan struct{}),
	}
	if cfg.BackgroundTask {
		d.wg.Add(1)
		go d.run()
	}
	d.logger.Info("uvc driver installed", "background_task", cfg.BackgroundTask)
	return d, nil
}

// Uninstall tears the driver down. Every stream must be closed first.
func (d *Driver) Uninstall() error {
	d.mu.Lock()
	if !d.installed {
		d.mu.Unlock()
		return fmt.Errorf("%w: not installed", ErrInvalidState)
	}
	if len(d.streams) > 0 {
		n := len(d.streams)
		d.mu.Unlock()
		return fmt.Errorf("%w: %d streams still open", ErrInvalidState, n)
	}
	d.installed = false
	d.mu.Unlock()

	close(d.stopBG)
	d.wg.Wait()
	d.logger.Info("uvc driver uninstalled")
	return nil
}

// OpenStream opens a camera function, negotiates the format and
// allocates the stream's frame and transfer pools. The stream starts in
// the opened state; call Start to begin capture.
func (d *Driver) OpenStream(cfg StreamConfig) (*Stream, error) {
	d.mu.Lock()
	installed := d.installed
	d.mu.Unlock()
	if !installed {
		return nil, fmt.Errorf("%w: driver not installed", ErrInvalidState)
	}
	if cfg.OnFrame == nil {
		return nil, fmt.Errorf("%w: nil OnFrame callback", ErrInvalidArg)
	}
	if cfg.FrameBuffers < 0 || cfg.FrameBytes < 0 || cfg.TransferSlots < 0 || cfg.TransferBytes < 0 {
		return nil, fmt.Errorf("%w: negative buffer configuration", ErrInvalidArg)
	}
	if cfg.FrameBuffers == 0 {
		cfg.FrameBuffers = DefaultFrameBuffers
	}
	if cfg.TransferSlots == 0 {
		cfg.TransferSlots = DefaultTransferSlots
	}
	if cfg.TransferBytes == 0 {
		cfg.TransferBytes = DefaultTransferBytes
	}

	transport, err := d.cfg.Opener(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}
	neg, err := transport.Negotiate(cfg.Format)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("format negotiation: %w", err)
	}

	frameBytes := cfg.FrameBytes
	if frameBytes == 0 {
		frameBytes = neg.MaxVideoFrameSize
	}
	if frameBytes <= 0 {
		_ = transport.Close()
		return nil, fmt.Errorf("%w: no usable frame buffer size", ErrInvalidArg)
	}

	s := &Stream{
		drv:       d,
		transport: transport,
		cfg:       cfg,
		neg:       neg,
		logger:    d.logger.With("device", transport.Info().Key()),
		pool:      newFramePool(cfg.FrameBuffers, frameBytes, neg.Format),
		slots:     newTransferPool(cfg.TransferSlots, cfg.TransferBytes),
		state:     stateOpened,
	}
	s.asm = newAssembler(s.pool, s.logger, s.dispatchFrame, s.notify)

	// Completions funnel into the driver's shared queue; the send
	// blocks when the consumer lags, which is the backpressure that
	// keeps transfer and frame cadence decoupled but bounded.
	transport.Attach(func(r TransferResult) {
		d.completions <- pending{stream: s, result: r}
	})

	d.mu.Lock()
	d.streams[s] = struct{}{}
	d.mu.Unlock()

	s.logger.Info("stream opened", "format", neg.Format.String(),
		"frame_buffers", cfg.FrameBuffers, "frame_bytes", frameBytes)
	return s, nil
}

// HandleEvents drains completions on the caller's thread, in polling
// mode. It blocks up to timeout for the first event, handles everything
// immediately available, then returns. ErrTimeout means nothing
// arrived; ErrInvalidState means the driver runs its own background
// consumer or was uninstalled.
func (d *Driver) HandleEvents(timeout time.Duration) error {
	d.mu.Lock()
	ok := d.installed && !d.cfg.BackgroundTask
	d.mu.Unlock()
	if !ok {
		return ErrInvalidState
	}
	if err := d.pumpOne(timeout); err != nil {
		return err
	}
	// Opportunistically drain whatever else is queued.
	for {
		select {
		case p := <-d.completions:
			p.stream.handleResult(p.result)
		default:
			return nil
		}
	}
}

// pumpOne handles a single completion, waiting up to timeout.
func (d *Driver) pumpOne(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p := <-d.completions:
		p.stream.handleResult(p.result)
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// run is the background consumer context.
func (d *Driver) run() {
	defer d.wg.Done()
	for {
		select {
		case p := <-d.completions:
			p.stream.handleResult(p.result)
		case <-d.stopBG:
			// Drain what is already queued so no stream is left
			// waiting on a quiesce.
			for {
				select {
				case p := <-d.completions:
					p.stream.handleResult(p.result)
				default:
					return
				}
			}
		}
	}
}

func (d *Driver) background() bool { return d.cfg.BackgroundTask }

// Streams snapshots the open streams, for diagnostics.
func (d *Driver) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Stream, 0, len(d.streams))
	for s := range d.streams {
		out = append(out, s)
	}
	return out
}

func (d *Driver) forget(s *Stream) {
	d.mu.Lock()
	delete(d.streams, s)
	d.mu.Unlock()
}
