// Package uvctest provides an in-memory uvc.Transport that behaves
// like a UVC camera: it answers format negotiation, fills submitted
// transfer slots with header-framed synthetic payloads, and can inject
// the faults real devices produce: error bits, truncated frames,
// oversized frames and surprise disconnects.
//
// It exists for tests and for running the daemon without hardware.
package uvctest

import (
	"fmt"
	"sync"
	"time"

	"github.com/camforge/uvchost/pkg/uvc"
)

// CameraConfig describes the synthetic camera.
type CameraConfig struct {
	// Info is reported through uvc.Transport. Zero VID/PID are
	// replaced with a recognizable default.
	Info uvc.DeviceInfo

	// Format is the single format the camera commits to.
	Format uvc.StreamFormat

	// FrameBytes is the size of each produced frame. Default 16384.
	FrameBytes int

	// MaxVideoFrameSize reported by negotiation. Defaults to
	// FrameBytes.
	MaxVideoFrameSize int

	// MaxPayloadSize caps one transfer's bytes, header included.
	// Default 1024.
	MaxPayloadSize int

	// FrameInterval paces frame starts. Zero streams as fast as
	// slots are submitted.
	FrameInterval time.Duration

	// WithPTS adds a presentation timestamp to every payload
	// header.
	WithPTS bool
}

type submission struct {
	slot int
	buf  []byte
}

// Camera is a simulated UVC camera implementing uvc.Transport.
// Completions are produced by an internal goroutine, never from the
// caller of Submit, matching the interrupt-driven cadence of a real
// transport.
type Camera struct {
	cfg  CameraConfig
	sink func(uvc.TransferResult)

	mu           sync.Mutex
	cond         *sync.Cond
	queue        []submission
	closed       bool
	disconnected bool
	devGone      bool // device-level disconnect result still to deliver

	// fault injection, consumed one payload/transfer at a time
	failNext   error
	corrupt    bool
	frameSizes []int

	// generator state
	fid       bool
	remaining int
	offset    int
	frameIdx  int
	produced  int

	done chan struct{}
}

// NewCamera creates the camera and starts its completion worker.
func NewCamera(cfg CameraConfig) *Camera {
	if cfg.FrameBytes <= 0 {
		cfg.FrameBytes = 16384
	}
	if cfg.MaxVideoFrameSize <= 0 {
		cfg.MaxVideoFrameSize = cfg.FrameBytes
	}
	if cfg.MaxPayloadSize <= 0 {
		cfg.MaxPayloadSize = 1024
	}
	if cfg.Info.VendorID == 0 && cfg.Info.ProductID == 0 {
		cfg.Info.VendorID = 0x1d6b
		cfg.Info.ProductID = 0x0102
	}
	if cfg.Info.Product == "" {
		cfg.Info.Product = "uvctest synthetic camera"
	}
	if len(cfg.Info.Formats) == 0 {
		cfg.Info.Formats = []uvc.StreamFormat{cfg.Format}
	}

	c := &Camera{cfg: cfg, done: make(chan struct{})}
	c.cond = sync.NewCond(&c.mu)
	go c.run()
	return c
}

// Opener returns a uvc.TransportOpener that matches this camera
// against the filter, for wiring into uvc.Install.
func (c *Camera) Opener() uvc.TransportOpener {
	return func(f uvc.DeviceFilter) (uvc.Transport, error) {
		if f.VendorID != 0 && f.VendorID != c.cfg.Info.VendorID {
			return nil, uvc.ErrNotFound
		}
		if f.ProductID != 0 && f.ProductID != c.cfg.Info.ProductID {
			return nil, uvc.ErrNotFound
		}
		return c, nil
	}
}

// Info implements uvc.Transport.
func (c *Camera) Info() uvc.DeviceInfo { return c.cfg.Info }

// Negotiate implements uvc.Transport. Zero fields in want are
// wildcards; anything else must match the camera's one format.
func (c *Camera) Negotiate(want uvc.StreamFormat) (uvc.Negotiation, error) {
	have := c.cfg.Format
	if want.Width != 0 && want.Width != have.Width {
		return uvc.Negotiation{}, uvc.ErrNotFound
	}
	if want.Height != 0 && want.Height != have.Height {
		return uvc.Negotiation{}, uvc.ErrNotFound
	}
	if want.FPS != 0 && want.FPS != have.FPS {
		return uvc.Negotiation{}, uvc.ErrNotFound
	}
	if want.Format != uvc.FormatUndefined && want.Format != have.Format {
		return uvc.Negotiation{}, uvc.ErrNotFound
	}
	return uvc.Negotiation{
		Format:            have,
		MaxVideoFrameSize: c.cfg.MaxVideoFrameSize,
		MaxPayloadSize:    c.cfg.MaxPayloadSize,
	}, nil
}

// Attach implements uvc.Transport.
func (c *Camera) Attach(sink func(uvc.TransferResult)) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// Submit implements uvc.Transport.
func (c *Camera) Submit(slot int, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("uvctest: camera closed")
	}
	if c.disconnected {
		return uvc.ErrDisconnected
	}
	if c.sink == nil {
		return fmt.Errorf("uvctest: no completion sink attached")
	}
	c.queue = append(c.queue, submission{slot: slot, buf: buf})
	c.cond.Signal()
	return nil
}

// CancelAll implements uvc.Transport: queued submissions complete with
// TransferCancelled, delivered synchronously from the caller, and the
// generator restarts at a frame boundary. A submission the worker has
// already picked up still completes normally, as on real hardware.
func (c *Camera) CancelAll() error {
	c.mu.Lock()
	q := c.queue
	c.queue = nil
	c.remaining = 0
	c.offset = 0
	sink := c.sink
	c.mu.Unlock()
	for _, sub := range q {
		sink(uvc.TransferResult{Slot: sub.slot, Status: uvc.TransferCancelled})
	}
	return nil
}

// Close implements uvc.Transport.
func (c *Camera) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cond.Signal()
	c.mu.Unlock()
	<-c.done
	return nil
}

// Disconnect simulates the device vanishing from the bus: queued and
// future submissions complete with TransferNoDevice.
func (c *Camera) Disconnect() {
	c.mu.Lock()
	c.disconnected = true
	c.devGone = true
	c.cond.Signal()
	c.mu.Unlock()
}

// FailNextTransfer makes the next completion report a transport error
// without consuming frame data.
func (c *Camera) FailNextTransfer(err error) {
	c.mu.Lock()
	c.failNext = err
	c.mu.Unlock()
}

// CorruptNextPayload sets the error bit on the next payload header and
// abandons the rest of the current frame, as cameras do on internal
// capture errors.
func (c *Camera) CorruptNextPayload() {
	c.mu.Lock()
	c.corrupt = true
	c.mu.Unlock()
}

// QueueFrameSize overrides the size of upcoming frames, one entry per
// frame, before falling back to the configured size.
func (c *Camera) QueueFrameSize(n int) {
	c.mu.Lock()
	c.frameSizes = append(c.frameSizes, n)
	c.mu.Unlock()
}

// FramesProduced reports how many complete frames the camera has
// emitted end-of-frame for.
func (c *Camera) FramesProduced() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.produced
}

// Pattern returns the deterministic payload of frame n at the given
// size, for content assertions in tests.
func Pattern(n, size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(n + i)
	}
	return b
}

// run is the completion worker.
func (c *Camera) run() {
	defer close(c.done)
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed && !c.devGone {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}

		if c.devGone && len(c.queue) == 0 {
			c.devGone = false
			sink := c.sink
			c.mu.Unlock()
			sink(uvc.TransferResult{Slot: uvc.NoSlot, Status: uvc.TransferNoDevice, Err: uvc.ErrDisconnected})
			continue
		}

		var sub submission
		sub, c.queue = c.queue[0], c.queue[1:]
		status := uvc.TransferCompleted
		if c.disconnected {
			status = uvc.TransferNoDevice
		}
		sink := c.sink

		if status != uvc.TransferCompleted {
			c.mu.Unlock()
			sink(uvc.TransferResult{Slot: sub.slot, Status: status, Err: statusErr(status)})
			continue
		}

		if err := c.failNext; err != nil {
			c.failNext = nil
			c.mu.Unlock()
			sink(uvc.TransferResult{Slot: sub.slot, Status: uvc.TransferFailed, Err: err})
			continue
		}

		n, pause := c.fillLocked(sub.buf)
		c.mu.Unlock()

		if pause > 0 {
			time.Sleep(pause)
		}
		sink(uvc.TransferResult{Slot: sub.slot, Length: n, Status: uvc.TransferCompleted})
	}
}

func statusErr(s uvc.TransferStatus) error {
	if s == uvc.TransferNoDevice {
		return uvc.ErrDisconnected
	}
	return nil
}

// fillLocked writes the next header-framed payload chunk into buf and
// returns the transfer length plus any frame pacing to apply before
// delivery. Caller holds c.mu.
func (c *Camera) fillLocked(buf []byte) (int, time.Duration) {
	var pause time.Duration

	if c.remaining == 0 {
		// Start the next frame.
		size := c.cfg.FrameBytes
		if len(c.frameSizes) > 0 {
			size, c.frameSizes = c.frameSizes[0], c.frameSizes[1:]
		}
		c.frameIdx++
		c.fid = !c.fid
		c.remaining = size
		c.offset = 0
		pause = c.cfg.FrameInterval
	}

	hlen := 2
	if c.cfg.WithPTS {
		hlen += 4
	}

	space := len(buf)
	if space > c.cfg.MaxPayloadSize {
		space = c.cfg.MaxPayloadSize
	}
	space -= hlen
	if space < 0 {
		return 0, 0
	}
	n := c.remaining
	if n > space {
		n = space
	}

	var info byte
	if c.fid {
		info |= 0x01
	}
	if c.cfg.WithPTS {
		info |= 0x04
	}

	if c.corrupt {
		c.corrupt = false
		info |= 0x40 // ERR
		// The device abandons the rest of this frame.
		c.remaining = 0
		buf[0] = byte(hlen)
		buf[1] = info
		c.stampPTS(buf, hlen)
		return hlen, pause
	}

	c.remaining -= n
	if c.remaining == 0 {
		info |= 0x02 // EOF
		c.produced++
	}

	buf[0] = byte(hlen)
	buf[1] = info
	c.stampPTS(buf, hlen)
	for i := 0; i < n; i++ {
		buf[hlen+i] = byte(c.frameIdx + c.offset + i)
	}
	c.offset += n
	return hlen + n, pause
}

func (c *Camera) stampPTS(buf []byte, hlen int) {
	if hlen < 6 {
		return
	}
	pts := uint32(c.frameIdx) * 3000
	buf[2] = byte(pts)
	buf[3] = byte(pts >> 8)
	buf[4] = byte(pts >> 16)
	buf[5] = byte(pts >> 24)
}
