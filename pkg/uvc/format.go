package uvc

import "fmt"

// FormatType identifies the frame coding negotiated with the camera.
// Compressed formats are opaque to the driver; it never inspects the
// payload bytes.
type FormatType uint8

// Stream formats supported by UVC cameras this driver talks to.
const (
	FormatUndefined FormatType = iota
	FormatMJPEG
	FormatYUY2
	FormatH264
	FormatH265
)

// String returns a short format name.
func (f FormatType) String() string {
	switch f {
	case FormatMJPEG:
		return "MJPEG"
	case FormatYUY2:
		return "YUY2"
	case FormatH264:
		return "H264"
	case FormatH265:
		return "H265"
	default:
		return "undefined"
	}
}

// StreamFormat describes a video stream: resolution, frame rate and
// coding. It is what the application requests at open time and what the
// transport reports back after negotiation.
type StreamFormat struct {
	Width  int
	Height int
	FPS    float64
	Format FormatType
}

// String renders the format as "1280x720@30.0 MJPEG".
func (f StreamFormat) String() string {
	return fmt.Sprintf("%dx%d@%.1f %s", f.Width, f.Height, f.FPS, f.Format)
}

// Negotiation is the transport's answer to a format request.
type Negotiation struct {
	// Format actually committed by the device.
	Format StreamFormat

	// MaxVideoFrameSize is the device-declared upper bound on one
	// frame's payload bytes (dwMaxVideoFrameSize).
	MaxVideoFrameSize int

	// MaxPayloadSize is the device-declared upper bound on one
	// transfer's payload bytes (dwMaxPayloadTransferSize).
	MaxPayloadSize int
}
