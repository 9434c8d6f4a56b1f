package uvctest_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/camforge/uvchost/pkg/uvc"
	"github.com/camforge/uvchost/pkg/uvc/uvctest"
)

func recvResult(t *testing.T, ch <-chan uvc.TransferResult) uvc.TransferResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a completion")
		return uvc.TransferResult{}
	}
}

func TestCameraNegotiate(t *testing.T) {
	format := uvc.StreamFormat{Width: 640, Height: 480, FPS: 30, Format: uvc.FormatYUY2}
	cam := uvctest.NewCamera(uvctest.CameraConfig{Format: format, FrameBytes: 2048})
	defer cam.Close()

	neg, err := cam.Negotiate(uvc.StreamFormat{})
	if err != nil {
		t.Fatalf("wildcard negotiation: %v", err)
	}
	if neg.Format != format {
		t.Errorf("negotiated %v, want %v", neg.Format, format)
	}
	if neg.MaxVideoFrameSize != 2048 {
		t.Errorf("MaxVideoFrameSize = %d, want 2048", neg.MaxVideoFrameSize)
	}

	if _, err := cam.Negotiate(uvc.StreamFormat{Width: 1920}); !errors.Is(err, uvc.ErrNotFound) {
		t.Errorf("mismatched negotiation err = %v, want ErrNotFound", err)
	}
}

func TestCameraProducesFramedPayloads(t *testing.T) {
	cam := uvctest.NewCamera(uvctest.CameraConfig{
		Format:     uvc.StreamFormat{Format: uvc.FormatMJPEG},
		FrameBytes: 600,
	})
	defer cam.Close()

	results := make(chan uvc.TransferResult, 8)
	cam.Attach(func(r uvc.TransferResult) { results <- r })

	buf := make([]byte, 256)
	var assembled []byte
	var lastFID bool
	frames := 0

	for frames < 2 {
		if err := cam.Submit(0, buf); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		r := recvResult(t, results)
		if r.Status != uvc.TransferCompleted {
			t.Fatalf("status = %v, want completed", r.Status)
		}
		p, err := uvc.ParsePayload(buf[:r.Length])
		if err != nil {
			t.Fatalf("camera produced a malformed payload: %v", err)
		}
		if frames == 0 && assembled == nil {
			lastFID = p.FrameID
		}
		if p.FrameID != lastFID {
			t.Fatalf("frame ID toggled without an end of frame")
		}
		assembled = append(assembled, p.Data...)
		if p.EndOfFrame {
			if len(assembled) != 600 {
				t.Fatalf("frame %d has %d bytes, want 600", frames, len(assembled))
			}
			want := uvctest.Pattern(frames+1, 600)
			if !bytes.Equal(assembled, want) {
				t.Fatalf("frame %d content does not match the deterministic pattern", frames)
			}
			frames++
			assembled = nil
			lastFID = !lastFID
		}
	}

	if cam.FramesProduced() != 2 {
		t.Errorf("FramesProduced = %d, want 2", cam.FramesProduced())
	}
}

func TestCameraCancelAll(t *testing.T) {
	cam := uvctest.NewCamera(uvctest.CameraConfig{Format: uvc.StreamFormat{Format: uvc.FormatMJPEG}})

	// Completed deliveries wait on the gate, so the worker can hold
	// at most one submission; the other is still queued at CancelAll.
	gate := make(chan struct{})
	results := make(chan uvc.TransferResult, 8)
	cam.Attach(func(r uvc.TransferResult) {
		if r.Status == uvc.TransferCompleted {
			<-gate
		}
		results <- r
	})

	if err := cam.Submit(0, make([]byte, 64)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := cam.Submit(1, make([]byte, 64)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := cam.CancelAll(); err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	close(gate)

	seen := map[int]uvc.TransferStatus{}
	for len(seen) < 2 {
		r := recvResult(t, results)
		seen[r.Slot] = r.Status
	}
	if seen[1] != uvc.TransferCancelled {
		t.Errorf("slot 1 status = %v, want cancelled", seen[1])
	}
	if err := cam.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCameraDisconnect(t *testing.T) {
	cam := uvctest.NewCamera(uvctest.CameraConfig{Format: uvc.StreamFormat{Format: uvc.FormatMJPEG}})
	defer cam.Close()

	results := make(chan uvc.TransferResult, 8)
	cam.Attach(func(r uvc.TransferResult) { results <- r })

	cam.Disconnect()
	r := recvResult(t, results)
	if r.Status != uvc.TransferNoDevice || r.Slot != uvc.NoSlot {
		t.Errorf("result = %+v, want device-level no-device", r)
	}

	if err := cam.Submit(0, make([]byte, 64)); !errors.Is(err, uvc.ErrDisconnected) {
		t.Errorf("Submit after disconnect err = %v, want ErrDisconnected", err)
	}
}
