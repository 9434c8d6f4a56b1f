// Package cmd holds the auxiliary CLI commands next to the daemon.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/camforge/uvchost/internal/logging"
	"github.com/camforge/uvchost/pkg/uvc"
	"github.com/camforge/uvchost/pkg/uvc/uvctest"
)

// CreateCaptureCmd creates the capture command: a bounded capture
// session against the built-in simulated camera, for exercising the
// driver without hardware.
func CreateCaptureCmd() *cobra.Command {
	var (
		frames       int
		width        int
		height       int
		fps          float64
		frameBuffers int
		poll         bool
		logJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a bounded simulated capture session",
		Long: `Opens a stream against the built-in simulated camera, captures the ` +
			`requested number of frames and prints per-session statistics. ` +
			`With --poll the completion pump runs on the main goroutine instead ` +
			`of a background task.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if frames < 1 {
				return fmt.Errorf("--frames must be at least 1, got %d", frames)
			}
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("capture")

			format := uvc.StreamFormat{
				Width:  width,
				Height: height,
				FPS:    fps,
				Format: uvc.FormatMJPEG,
			}
			cam := uvctest.NewCamera(uvctest.CameraConfig{
				Info: uvc.DeviceInfo{
					VendorID:  0x046d,
					ProductID: 0x0825,
					Product:   "simulated camera",
					Formats:   []uvc.StreamFormat{format},
				},
				Format:        format,
				FrameBytes:    64 * 1024,
				FrameInterval: time.Duration(float64(time.Second) / fps),
				WithPTS:       true,
			})

			drv, err := uvc.Install(uvc.DriverConfig{
				Opener:         cam.Opener(),
				BackgroundTask: !poll,
				Logger:         logger,
			})
			if err != nil {
				logger.Error("driver install failed", "error", err)
				os.Exit(1)
			}

			done := make(chan struct{})
			var captured int
			var bytes uint64
			var stream *uvc.Stream
			stream, err = drv.OpenStream(uvc.StreamConfig{
				Format:       format,
				FrameBuffers: frameBuffers,
				OnFrame: func(f *uvc.Frame) uvc.FrameOwnership {
					captured++
					bytes += uint64(f.Len())
					if captured == frames {
						close(done)
					}
					_ = stream.ReturnFrame(f)
					return uvc.FramePendingReturn
				},
				OnEvent: func(ev uvc.StreamEvent) {
					switch e := ev.(type) {
					case uvc.TransferErrorEvent:
						logger.Warn("transfer error", "error", e.Err)
					case uvc.OverflowEvent:
						logger.Warn("frame overflow")
					case uvc.UnderflowEvent:
						logger.Warn("frame underflow")
					case uvc.DisconnectedEvent:
						logger.Error("device disconnected")
					}
				},
			})
			if err != nil {
				logger.Error("open stream failed", "error", err)
				os.Exit(1)
			}

			start := time.Now()
			if err := stream.Start(); err != nil {
				logger.Error("start failed", "error", err)
				os.Exit(1)
			}

			if poll {
				for {
					select {
					case <-done:
					default:
						if err := drv.HandleEvents(100 * time.Millisecond); err != nil &&
							!errors.Is(err, uvc.ErrTimeout) {
							logger.Error("event pump failed", "error", err)
							os.Exit(1)
						}
						continue
					}
					break
				}
			} else {
				<-done
			}
			elapsed := time.Since(start)

			if err := stream.Stop(); err != nil {
				logger.Warn("stop failed", "error", err)
			}
			if err := stream.Close(); err != nil {
				logger.Warn("close failed", "error", err)
			}
			if err := drv.Uninstall(); err != nil {
				logger.Warn("uninstall failed", "error", err)
			}

			logger.Info("capture session finished",
				"frames", captured,
				"bytes", bytes,
				"elapsed", elapsed.Round(time.Millisecond),
				"fps", float64(captured)/elapsed.Seconds())
			return nil
		},
	}

	cmd.Flags().IntVar(&frames, "frames", 100, "Number of frames to capture")
	cmd.Flags().IntVar(&width, "width", 1280, "Frame width")
	cmd.Flags().IntVar(&height, "height", 720, "Frame height")
	cmd.Flags().Float64Var(&fps, "fps", 30, "Frame rate")
	cmd.Flags().IntVar(&frameBuffers, "frame-buffers", 3, "Frame buffer count")
	cmd.Flags().BoolVar(&poll, "poll", false, "Pump completions on the main goroutine")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
