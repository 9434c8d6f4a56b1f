// Package uvc implements the host side of a USB Video Class camera:
// format negotiation, continuous transfer pumping, reassembly of UVC
// payloads into complete frames, and a strict single-owner handoff of
// frame buffers to the application.
//
// The driver talks to the bus only through the Transport interface;
// enumeration, control requests and URB mechanics live below that
// boundary. Frame buffers are allocated once at stream open from a
// fixed arena and recycled for the stream's lifetime, so the hot path
// never allocates.
//
// Basic use:
//
//	drv, err := uvc.Install(uvc.DriverConfig{
//		Opener:         opener,
//		BackgroundTask: true,
//	})
//	stream, err := drv.OpenStream(uvc.StreamConfig{
//		Format: uvc.StreamFormat{Width: 1280, Height: 720, Format: uvc.FormatMJPEG},
//		OnFrame: func(f *uvc.Frame) uvc.FrameOwnership {
//			process(f.Data())
//			return uvc.FrameAccepted // return it later via stream.ReturnFrame(f)
//		},
//	})
//	err = stream.Start()
//
// Frames arrive on a single consumer context in boundary order. A
// callback that keeps a frame must eventually call ReturnFrame or the
// pool starves and new frames are dropped with an underflow event.
package uvc
