package events

// Event type constants for kelindar/event.
const (
	TypeDeviceAttached uint32 = iota + 1
	TypeDeviceDetached
	TypeFrameCaptured
	TypeStreamStateChanged
	TypeStreamError
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceAttachedEvent is published when a UVC-capable device appears,
// either from the hotplug monitor or from a simulated camera install.
type DeviceAttachedEvent struct {
	VendorID  uint16 `json:"vendor_id" example:"1133" doc:"USB vendor identifier"`
	ProductID uint16 `json:"product_id" example:"2085" doc:"USB product identifier"`
	Serial    string `json:"serial,omitempty" example:"A1B2C3" doc:"Device serial number"`
	Path      string `json:"path,omitempty" example:"/dev/bus/usb/001/004" doc:"Device node path"`
	Timestamp string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceAttachedEvent.
func (e DeviceAttachedEvent) Type() uint32 { return TypeDeviceAttached }

// DeviceDetachedEvent is published when a device disappears.
type DeviceDetachedEvent struct {
	VendorID  uint16 `json:"vendor_id" example:"1133" doc:"USB vendor identifier"`
	ProductID uint16 `json:"product_id" example:"2085" doc:"USB product identifier"`
	Serial    string `json:"serial,omitempty" example:"A1B2C3" doc:"Device serial number"`
	Path      string `json:"path,omitempty" example:"/dev/bus/usb/001/004" doc:"Device node path"`
	Timestamp string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDetachedEvent.
func (e DeviceDetachedEvent) Type() uint32 { return TypeDeviceDetached }

// FrameCapturedEvent is published for every completed frame handed to
// the application. It carries metadata only, never the pixel data.
type FrameCapturedEvent struct {
	Device      string `json:"device" example:"046d:0825" doc:"Device the frame came from"`
	FrameNumber uint64 `json:"frame_number" example:"1042" doc:"Monotonic frame counter"`
	Bytes       int    `json:"bytes" example:"614400" doc:"Frame payload size"`
	PTS         uint32 `json:"pts,omitempty" doc:"Presentation timestamp from the payload header"`
	Timestamp   string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// StreamStateChangedEvent tracks the stream lifecycle: opened,
// streaming, stopped, closed, gone.
type StreamStateChangedEvent struct {
	Device    string `json:"device" example:"046d:0825" doc:"Device identifier"`
	State     string `json:"state" example:"streaming" doc:"New stream state"`
	Timestamp string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// StreamErrorEvent is published for recoverable and fatal stream
// faults: transfer errors, frame overflow and underflow, disconnects.
type StreamErrorEvent struct {
	Device    string `json:"device" example:"046d:0825" doc:"Device identifier"`
	Kind      string `json:"kind" example:"overflow" doc:"Fault kind: transfer, overflow, underflow, disconnect"`
	Error     string `json:"error,omitempty" example:"babble detected" doc:"Detail from the transport, if any"`
	Timestamp string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamErrorEvent.
func (e StreamErrorEvent) Type() uint32 { return TypeStreamError }

// LogEntryEvent carries one log record for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-08-24T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"uvc" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
