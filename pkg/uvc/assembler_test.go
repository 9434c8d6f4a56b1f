package uvc

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
)

type asmHarness struct {
	pool      *framePool
	asm       *assembler
	delivered []*Frame
	events    []StreamEvent
}

func newAsmHarness(buffers, capacity int) *asmHarness {
	h := &asmHarness{pool: newFramePool(buffers, capacity, StreamFormat{Format: FormatMJPEG})}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.asm = newAssembler(h.pool, logger,
		func(f *Frame) { h.delivered = append(h.delivered, f) },
		func(ev StreamEvent) { h.events = append(h.events, ev) })
	return h
}

// giveBack finalizes and releases a delivered frame the way dispatch
// and the application would.
func (h *asmHarness) giveBack(t *testing.T, f *Frame) {
	t.Helper()
	h.pool.markReady(f)
	if err := h.pool.release(f); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func pl(fid, eof bool, data []byte) Payload {
	return Payload{FrameID: fid, EndOfFrame: eof, Data: data}
}

func TestAssemblerSingleFrameEOF(t *testing.T) {
	h := newAsmHarness(2, 64)

	h.asm.push(pl(false, false, []byte{1, 2, 3}))
	h.asm.push(pl(false, false, []byte{4, 5}))
	h.asm.push(pl(false, true, []byte{6}))

	if len(h.delivered) != 1 {
		t.Fatalf("delivered %d frames, want 1", len(h.delivered))
	}
	if got := h.delivered[0].Data(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("frame data = %x, want 010203040506", got)
	}
}

func TestAssemblerToggleBoundary(t *testing.T) {
	h := newAsmHarness(3, 64)

	// No EOF anywhere: frames end implicitly when the FID flips.
	h.asm.push(pl(false, false, []byte{1, 1}))
	h.asm.push(pl(true, false, []byte{2, 2}))
	h.asm.push(pl(false, false, []byte{3, 3}))

	if len(h.delivered) != 2 {
		t.Fatalf("delivered %d frames, want 2", len(h.delivered))
	}
	if !bytes.Equal(h.delivered[0].Data(), []byte{1, 1}) {
		t.Errorf("first frame = %x, want 0101", h.delivered[0].Data())
	}
	if !bytes.Equal(h.delivered[1].Data(), []byte{2, 2}) {
		t.Errorf("second frame = %x, want 0202", h.delivered[1].Data())
	}
}

func TestAssemblerTrailingPayloadsAfterEOF(t *testing.T) {
	h := newAsmHarness(2, 64)

	h.asm.push(pl(false, true, []byte{1}))
	// Same FID after the explicit end: stragglers, not a new frame.
	h.asm.push(pl(false, false, []byte{9}))
	h.asm.push(pl(false, false, []byte{9}))

	if len(h.delivered) != 1 {
		t.Fatalf("delivered %d frames, want 1", len(h.delivered))
	}
	if h.pool.freeCount() != 1 {
		t.Errorf("freeCount = %d, want 1 (no buffer borrowed for stragglers)", h.pool.freeCount())
	}
}

func TestAssemblerZeroByteFrameDropped(t *testing.T) {
	h := newAsmHarness(2, 64)

	h.asm.push(pl(false, true, nil))

	if len(h.delivered) != 0 {
		t.Fatalf("delivered %d frames for a zero-byte frame, want 0", len(h.delivered))
	}
	if len(h.events) != 0 {
		t.Errorf("events = %v for a zero-byte frame, want none", h.events)
	}
	if h.pool.freeCount() != 2 {
		t.Errorf("freeCount = %d, want 2", h.pool.freeCount())
	}
}

func TestAssemblerErrorBitDiscardsFrame(t *testing.T) {
	h := newAsmHarness(2, 64)

	h.asm.push(pl(false, false, []byte{1, 2}))
	h.asm.push(Payload{FrameID: false, Error: true})
	h.asm.push(pl(false, true, []byte{3})) // rest of the poisoned frame

	if len(h.delivered) != 0 {
		t.Fatalf("delivered %d frames from an errored frame, want 0", len(h.delivered))
	}
	if h.pool.freeCount() != 2 {
		t.Errorf("freeCount = %d after discard, want 2", h.pool.freeCount())
	}

	// The next toggle recovers.
	h.asm.push(pl(true, true, []byte{7, 8}))
	if len(h.delivered) != 1 || !bytes.Equal(h.delivered[0].Data(), []byte{7, 8}) {
		t.Fatalf("recovery frame not delivered, got %d frames", len(h.delivered))
	}
}

func TestAssemblerOverflow(t *testing.T) {
	h := newAsmHarness(2, 8)

	h.asm.push(pl(false, false, bytes.Repeat([]byte{1}, 8)))
	h.asm.push(pl(false, false, []byte{2})) // ninth byte

	if len(h.delivered) != 0 {
		t.Fatalf("delivered %d frames, want 0", len(h.delivered))
	}
	if len(h.events) != 1 {
		t.Fatalf("events = %v, want one overflow", h.events)
	}
	if _, ok := h.events[0].(OverflowEvent); !ok {
		t.Fatalf("event = %T, want OverflowEvent", h.events[0])
	}
	if h.pool.freeCount() != 2 {
		t.Errorf("freeCount = %d after overflow discard, want 2", h.pool.freeCount())
	}

	// Remaining payloads of the oversized frame stay discarded.
	h.asm.push(pl(false, true, []byte{3}))
	if len(h.delivered) != 0 {
		t.Fatal("tail of an overflowed frame was delivered")
	}

	// Next frame assembles normally.
	h.asm.push(pl(true, true, []byte{4, 4}))
	if len(h.delivered) != 1 || !bytes.Equal(h.delivered[0].Data(), []byte{4, 4}) {
		t.Fatalf("frame after overflow not delivered, got %d frames", len(h.delivered))
	}
}

func TestAssemblerExactCapacity(t *testing.T) {
	h := newAsmHarness(1, 8)

	h.asm.push(pl(false, false, bytes.Repeat([]byte{5}, 4)))
	h.asm.push(pl(false, true, bytes.Repeat([]byte{6}, 4)))

	if len(h.delivered) != 1 {
		t.Fatalf("delivered %d frames, want 1", len(h.delivered))
	}
	if h.delivered[0].Len() != 8 {
		t.Errorf("frame length = %d, want the full 8", h.delivered[0].Len())
	}
	if len(h.events) != 0 {
		t.Errorf("events = %v at exact capacity, want none", h.events)
	}
}

func TestAssemblerUnderflow(t *testing.T) {
	h := newAsmHarness(1, 64)

	h.asm.push(pl(false, true, []byte{1}))
	if len(h.delivered) != 1 {
		t.Fatal("first frame not delivered")
	}
	// The one buffer is still out with the application.
	h.asm.push(pl(true, true, []byte{2}))

	if len(h.delivered) != 1 {
		t.Fatalf("delivered %d frames with an empty pool, want 1", len(h.delivered))
	}
	if len(h.events) != 1 {
		t.Fatalf("events = %v, want one underflow", h.events)
	}
	if _, ok := h.events[0].(UnderflowEvent); !ok {
		t.Fatalf("event = %T, want UnderflowEvent", h.events[0])
	}

	// Returning the frame lets the next one through.
	h.giveBack(t, h.delivered[0])
	h.asm.push(pl(false, true, []byte{3}))
	if len(h.delivered) != 2 || !bytes.Equal(h.delivered[1].Data(), []byte{3}) {
		t.Fatalf("frame after buffer return not delivered, got %d frames", len(h.delivered))
	}
}

func TestAssemblerPTSFromFirstPayload(t *testing.T) {
	h := newAsmHarness(1, 64)

	h.asm.push(Payload{HasPTS: true, PTS: 9000, Data: []byte{1}})
	h.asm.push(Payload{HasPTS: true, PTS: 9999, Data: []byte{2}, EndOfFrame: true})

	if len(h.delivered) != 1 {
		t.Fatal("frame not delivered")
	}
	pts, ok := h.delivered[0].PTS()
	if !ok || pts != 9000 {
		t.Errorf("PTS = %d,%v, want 9000 from the first payload", pts, ok)
	}
}

func TestAssemblerReset(t *testing.T) {
	h := newAsmHarness(1, 64)

	h.asm.push(pl(false, false, []byte{1, 2}))
	h.asm.reset()

	if h.pool.freeCount() != 1 {
		t.Errorf("freeCount = %d after reset, want 1", h.pool.freeCount())
	}
	// After reset the FID baseline is gone: the same toggle value
	// starts a fresh frame.
	h.asm.push(pl(false, true, []byte{3}))
	if len(h.delivered) != 1 || !bytes.Equal(h.delivered[0].Data(), []byte{3}) {
		t.Fatalf("frame after reset not delivered, got %d frames", len(h.delivered))
	}
}

// The worked example: two 1000-byte buffers, an 800-byte frame that
// fits and a 1200-byte frame that does not.
func TestAssemblerCapacityScenario(t *testing.T) {
	h := newAsmHarness(2, 1000)

	for sent := 0; sent < 800; sent += 200 {
		h.asm.push(pl(false, sent+200 == 800, bytes.Repeat([]byte{0xaa}, 200)))
	}
	if len(h.delivered) != 1 || h.delivered[0].Len() != 800 {
		t.Fatalf("800-byte frame not delivered intact, got %d frames", len(h.delivered))
	}

	for sent := 0; sent < 1200; sent += 200 {
		h.asm.push(pl(true, sent+200 == 1200, bytes.Repeat([]byte{0xbb}, 200)))
	}
	if len(h.delivered) != 1 {
		t.Fatalf("oversized frame was delivered, got %d frames", len(h.delivered))
	}
	if len(h.events) != 1 {
		t.Fatalf("events = %v, want exactly one overflow", h.events)
	}
	if _, ok := h.events[0].(OverflowEvent); !ok {
		t.Fatalf("event = %T, want OverflowEvent", h.events[0])
	}

	// Both buffers are accounted for: one with the application, one
	// free again after the discard.
	h.giveBack(t, h.delivered[0])
	if h.pool.freeCount() != 2 {
		t.Errorf("freeCount = %d, want 2 (no buffer leaked)", h.pool.freeCount())
	}
}
