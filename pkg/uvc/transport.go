package uvc

import "fmt"

// TransferStatus classifies one completed transfer as reported by the
// transport.
type TransferStatus uint8

// Transfer completion statuses.
const (
	TransferCompleted TransferStatus = iota // data arrived
	TransferFailed                          // transport error, pipeline continues
	TransferCancelled                       // cancelled during stream stop
	TransferNoDevice                        // device disconnected, terminal
)

// String returns the status name.
func (s TransferStatus) String() string {
	switch s {
	case TransferCompleted:
		return "completed"
	case TransferFailed:
		return "failed"
	case TransferCancelled:
		return "cancelled"
	case TransferNoDevice:
		return "no-device"
	default:
		return "unknown"
	}
}

// TransferResult is delivered by the transport for every submitted slot,
// and with Slot == NoSlot for device-level conditions that are not tied
// to a particular transfer (for example a disconnect detected while the
// bus is idle).
type TransferResult struct {
	Slot   int
	Length int
	Status TransferStatus
	Err    error
}

// NoSlot marks a TransferResult that does not belong to a transfer slot.
const NoSlot = -1

// DeviceInfo identifies an opened camera function and the formats it
// advertises. Descriptor parsing happens below the Transport boundary;
// the driver only forwards this summary to the application.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Product   string
	Serial    string
	Formats   []StreamFormat
}

// Key renders the stable "vvvv:pppp" identity used in logs, metric
// labels and API paths.
func (d DeviceInfo) Key() string {
	return fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
}

// DeviceFilter selects the camera to open. Zero values match any
// vendor/product; StreamIndex picks among multiple video functions of a
// composite device.
type DeviceFilter struct {
	VendorID    uint16
	ProductID   uint16
	StreamIndex uint8
}

// Transport is the downward contract to the USB host stack. The driver
// core owns transfer pacing and frame assembly; the transport owns
// enumeration, control requests and the actual bus traffic.
//
// Completion delivery runs on the transport's own context. The sink
// passed to Attach may block when the consumer falls behind; a transport
// must tolerate that (it is the backpressure that tells the device side
// to stall rather than the host to drop).
type Transport interface {
	// Info describes the opened device function.
	Info() DeviceInfo

	// Negotiate commits the stream format. Fields left zero in want
	// act as wildcards. Returns ErrNotFound when the device cannot
	// satisfy the request.
	Negotiate(want StreamFormat) (Negotiation, error)

	// Attach registers the completion sink. Must be called once,
	// before the first Submit.
	Attach(sink func(TransferResult))

	// Submit hands buf to the transport for the next incoming
	// transfer on the given slot. Exactly one TransferResult is
	// delivered per successful Submit.
	Submit(slot int, buf []byte) error

	// CancelAll aborts in-flight transfers. Each aborted transfer
	// still completes, with TransferCancelled.
	CancelAll() error

	// Close releases the device.
	Close() error
}

// TransportOpener locates and opens a device function matching the
// filter. It is supplied at driver install time; the driver never talks
// to the bus directly.
type TransportOpener func(DeviceFilter) (Transport, error)
