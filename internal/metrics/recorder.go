package metrics

import (
	"github.com/camforge/uvchost/internal/events"
)

// Recorder feeds stream events from the bus into the Prometheus
// counters, so capture code only publishes events and never touches
// metrics directly.
type Recorder struct {
	unsubs []func()
}

// NewRecorder subscribes to the bus. Call Stop to detach.
func NewRecorder(bus *events.Bus) *Recorder {
	r := &Recorder{}
	r.unsubs = append(r.unsubs,
		bus.Subscribe(func(e events.FrameCapturedEvent) {
			RecordFrame(e.Device, e.Bytes)
		}),
		bus.Subscribe(func(e events.StreamErrorEvent) {
			switch e.Kind {
			case "overflow":
				RecordOverflow(e.Device)
			case "underflow":
				RecordUnderflow(e.Device)
			case "transfer":
				RecordTransferError(e.Device)
			case "disconnect":
				RecordDisconnect(e.Device)
			}
		}),
	)
	return r
}

// Stop detaches the recorder from the bus.
func (r *Recorder) Stop() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}
