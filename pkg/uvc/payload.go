package uvc

import "fmt"

// UVC payload header layout (UVC 1.5, section 2.4.3.3):
//
//	byte 0: bHeaderLength
//	byte 1: bmHeaderInfo
//	        bit 0 FID  frame identifier toggle
//	        bit 1 EOF  end of frame
//	        bit 2 PTS  presentation timestamp present (4 bytes)
//	        bit 3 SCR  source clock reference present (6 bytes)
//	        bit 4 RES  reserved
//	        bit 5 STI  still image
//	        bit 6 ERR  device signalled an error for this payload
//	        bit 7 EOH  end of header
const (
	headerFlagFID = 1 << 0
	headerFlagEOF = 1 << 1
	headerFlagPTS = 1 << 2
	headerFlagSCR = 1 << 3
	headerFlagERR = 1 << 6
)

const minHeaderLength = 2

// Payload is one parsed transfer: the decoded header bits plus the
// payload body. Data aliases the transfer buffer; it is only valid
// until the slot is resubmitted.
type Payload struct {
	FrameID    bool
	EndOfFrame bool
	Error      bool
	HasPTS     bool
	PTS        uint32
	Data       []byte
}

// ParsePayload decodes the UVC payload header at the start of one
// completed transfer. It is a pure function: all frame-boundary state
// lives in the assembler.
//
// A zero-length transfer is valid and yields an empty payload (cameras
// emit them to keep isochronous timing); callers treat it as a no-op.
func ParsePayload(transfer []byte) (Payload, error) {
	if len(transfer) == 0 {
		return Payload{}, nil
	}
	if len(transfer) < minHeaderLength {
		return Payload{}, fmt.Errorf("%w: %d byte transfer", ErrMalformedPayload, len(transfer))
	}

	hlen := int(transfer[0])
	info := transfer[1]

	want := minHeaderLength
	if info&headerFlagPTS != 0 {
		want += 4
	}
	if info&headerFlagSCR != 0 {
		want += 6
	}
	if hlen < want {
		return Payload{}, fmt.Errorf("%w: header length %d, flags need %d", ErrMalformedPayload, hlen, want)
	}
	if hlen > len(transfer) {
		return Payload{}, fmt.Errorf("%w: header length %d exceeds %d byte transfer", ErrMalformedPayload, hlen, len(transfer))
	}

	p := Payload{
		FrameID:    info&headerFlagFID != 0,
		EndOfFrame: info&headerFlagEOF != 0,
		Error:      info&headerFlagERR != 0,
		Data:       transfer[hlen:],
	}
	if info&headerFlagPTS != 0 {
		p.HasPTS = true
		p.PTS = uint32(transfer[2]) | uint32(transfer[3])<<8 | uint32(transfer[4])<<16 | uint32(transfer[5])<<24
	}
	return p, nil
}
