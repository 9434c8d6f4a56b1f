package uvc

// bufferState is the ownership tag of a frame buffer. The only legal
// cycle is Free -> InAssembly -> Ready -> HeldByApplication -> Free,
// with the shortcuts Ready -> Free (application returns without taking
// ownership) and InAssembly -> Free (assembler abandons a frame).
type bufferState uint8

const (
	bufFree bufferState = iota
	bufInAssembly
	bufReady
	bufHeld
)

func (s bufferState) String() string {
	switch s {
	case bufFree:
		return "free"
	case bufInAssembly:
		return "in-assembly"
	case bufReady:
		return "ready"
	case bufHeld:
		return "held"
	default:
		return "unknown"
	}
}

// Frame is one fixed-capacity frame buffer. Buffers are allocated once
// at stream open, recycled for the stream's whole lifetime and freed at
// close; the data slice is a window into the pool's arena and is never
// reallocated.
//
// While a frame is delivered to the application (Ready or
// HeldByApplication) the driver does not touch its bytes; after
// ReturnFrame the driver may overwrite them at any time.
type Frame struct {
	format StreamFormat
	data   []byte // full capacity window into the pool arena
	length int
	pts    uint32
	hasPTS bool

	index int // position in the pool, stable for the frame's lifetime
	state bufferState
}

// Data returns the frame payload written so far. The slice aliases
// driver-owned memory; it is valid until the frame is returned.
func (f *Frame) Data() []byte { return f.data[:f.length] }

// Len returns the number of payload bytes in the frame.
func (f *Frame) Len() int { return f.length }

// Cap returns the fixed buffer capacity.
func (f *Frame) Cap() int { return len(f.data) }

// Format returns the stream format this frame was captured with.
func (f *Frame) Format() StreamFormat { return f.format }

// PTS returns the device presentation timestamp carried in the frame's
// first payload header, if one was present.
func (f *Frame) PTS() (uint32, bool) { return f.pts, f.hasPTS }

// appendPayload copies b at the current write offset. Returns false
// without writing anything when the frame would exceed capacity.
func (f *Frame) appendPayload(b []byte) bool {
	if f.length+len(b) > len(f.data) {
		return false
	}
	copy(f.data[f.length:], b)
	f.length += len(b)
	return true
}
