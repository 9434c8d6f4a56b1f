package sink

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

const (
	rtpMTU       = 1200
	rtpClockRate = 90000
	// Dynamic payload type, matching the common H264 convention.
	rtpPayloadType = 96
)

// RTPSink forwards captured H.264 frames to a UDP target as RTP
// packets. Frames must be Annex B elementary stream data.
type RTPSink struct {
	conn       *net.UDPConn
	packetizer rtp.Packetizer
	samples    uint32
	logger     *slog.Logger

	mu      sync.Mutex
	packets uint64
	bytes   uint64
}

// NewRTPSink dials target (host:port) and prepares an H264 packetizer.
// fps sets the RTP timestamp step per frame on the 90kHz clock.
func NewRTPSink(target string, fps uint32, logger *slog.Logger) (*RTPSink, error) {
	if fps == 0 {
		fps = 30
	}
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolving rtp target %s: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing rtp target %s: %w", target, err)
	}

	packetizer := rtp.NewPacketizer(
		rtpMTU,
		rtpPayloadType,
		rand.Uint32(),
		&codecs.H264Payloader{},
		rtp.NewRandomSequencer(),
		rtpClockRate,
	)

	logger.Info("rtp sink started", "target", target, "fps", fps)
	return &RTPSink{
		conn:       conn,
		packetizer: packetizer,
		samples:    rtpClockRate / fps,
		logger:     logger,
	}, nil
}

// WriteFrame packetizes one frame and sends it. Send errors on
// individual packets abort the frame.
func (s *RTPSink) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	packets := s.packetizer.Packetize(data, s.samples)
	for _, pkt := range packets {
		raw, err := pkt.Marshal()
		if err != nil {
			return fmt.Errorf("marshaling rtp packet: %w", err)
		}
		if _, err := s.conn.Write(raw); err != nil {
			return fmt.Errorf("sending rtp packet: %w", err)
		}
		s.packets++
		s.bytes += uint64(len(raw))
	}
	return nil
}

// Stats returns packets and bytes sent so far.
func (s *RTPSink) Stats() (packets, bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes
}

// Close releases the UDP socket.
func (s *RTPSink) Close() error {
	return s.conn.Close()
}
