package uvc

// StreamEvent is an asynchronous notification delivered through the
// stream's event callback. All events are non-fatal except
// DisconnectedEvent, after which only Close succeeds.
type StreamEvent interface {
	streamEvent()
}

// TransferErrorEvent reports a transport-level transfer failure. The
// pipeline keeps running; the failed slot is resubmitted.
type TransferErrorEvent struct {
	Err error
}

// DisconnectedEvent reports that the device is gone. Terminal: the
// stream stops and every operation except Close fails afterwards.
type DisconnectedEvent struct{}

// OverflowEvent reports a frame discarded because its payload exceeded
// the frame buffer capacity. Increase the frame buffer size to resolve.
type OverflowEvent struct{}

// UnderflowEvent reports a frame discarded because no free frame buffer
// was available. Return delivered frames faster or configure more
// buffers.
type UnderflowEvent struct{}

func (TransferErrorEvent) streamEvent() {}
func (DisconnectedEvent) streamEvent()  {}
func (OverflowEvent) streamEvent()      {}
func (UnderflowEvent) streamEvent()     {}

// FrameOwnership is the frame callback's answer on buffer custody.
type FrameOwnership uint8

const (
	// FrameAccepted transfers the buffer to the application. The
	// driver stops tracking it; the application must call
	// Stream.ReturnFrame once done.
	FrameAccepted FrameOwnership = iota

	// FramePendingReturn leaves the buffer driver-tracked. The
	// application must still call Stream.ReturnFrame before the
	// buffer can be reused.
	FramePendingReturn
)

// FrameCallback receives each completed frame, synchronously on the
// consumer context. It must not block for long: the same context drains
// transfer completions, and a stalled callback stalls the device.
//
// The callback may call Stream.ReturnFrame on the frame before
// returning; the ownership result is then ignored.
type FrameCallback func(*Frame) FrameOwnership

// EventCallback receives asynchronous stream notifications,
// synchronously on the consumer context.
type EventCallback func(StreamEvent)
