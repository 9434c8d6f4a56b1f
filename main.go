package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/camforge/uvchost/cmd"
	"github.com/camforge/uvchost/internal/config"
	"github.com/camforge/uvchost/internal/events"
	"github.com/camforge/uvchost/internal/logging"
	"github.com/camforge/uvchost/internal/metrics"
	"github.com/camforge/uvchost/internal/server"
	"github.com/camforge/uvchost/internal/sink"
	"github.com/camforge/uvchost/internal/version"
	"github.com/camforge/uvchost/pkg/usbmon"
	"github.com/camforge/uvchost/pkg/uvc"
	"github.com/camforge/uvchost/pkg/uvc/uvctest"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Stream settings
	Simulate      bool    `help:"Capture from the built-in simulated camera" default:"true" toml:"stream.simulate" env:"STREAM_SIMULATE"`
	Width         int     `help:"Frame width" default:"1280" toml:"stream.width" env:"STREAM_WIDTH"`
	Height        int     `help:"Frame height" default:"720" toml:"stream.height" env:"STREAM_HEIGHT"`
	FPS           float64 `help:"Frame rate" default:"30" toml:"stream.fps" env:"STREAM_FPS"`
	FrameBuffers  int     `help:"Frame buffer count" default:"3" toml:"stream.frame_buffers" env:"STREAM_FRAME_BUFFERS"`
	FrameBytes    int     `help:"Frame buffer size, 0 uses the negotiated maximum" default:"0" toml:"stream.frame_bytes" env:"STREAM_FRAME_BYTES"`
	TransferSlots int     `help:"In-flight transfer count" default:"3" toml:"stream.transfer_slots" env:"STREAM_TRANSFER_SLOTS"`
	TransferBytes int     `help:"Transfer buffer size" default:"10240" toml:"stream.transfer_bytes" env:"STREAM_TRANSFER_BYTES"`
	PollingMode   bool    `help:"Pump completions on the main thread instead of a background task" default:"false" toml:"stream.polling" env:"STREAM_POLLING"`

	// Sink settings
	RTPTarget string `help:"Forward H264 frames to this UDP host:port as RTP" default:"" toml:"rtp.target" env:"RTP_TARGET"`

	// Hotplug settings
	HotplugEnabled bool `help:"Monitor USB hotplug events" default:"true" toml:"hotplug.enabled" env:"HOTPLUG_ENABLED"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingUVC    string `help:"Driver logging level" default:"info" toml:"logging.uvc" env:"LOGGING_UVC"`
	LoggingServer string `help:"API server logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
	LoggingUsbmon string `help:"Hotplug monitor logging level" default:"info" toml:"logging.usbmon" env:"LOGGING_USBMON"`
	LoggingHTTP   string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"uvc":    opts.LoggingUVC,
				"server": opts.LoggingServer,
				"usbmon": opts.LoggingUsbmon,
				"http":   opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")
		logger.Info("uvchost starting", "version", version.String())

		bus := events.New()

		// Every log record becomes a bus event so SSE clients can
		// tail the daemon live.
		logging.SetEntryCallback(func(entry logging.LogEntry) {
			bus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		recorder := metrics.NewRecorder(bus)
		snapshots := sink.NewSnapshotStore()

		var rtpSink *sink.RTPSink
		if opts.RTPTarget != "" {
			var err error
			rtpSink, err = sink.NewRTPSink(opts.RTPTarget, uint32(opts.FPS), logging.GetLogger("sink"))
			if err != nil {
				logger.Error("rtp sink setup failed", "error", err)
				os.Exit(1)
			}
		}

		if !opts.Simulate {
			logger.Error("no usb transport configured; run with --simulate")
			os.Exit(1)
		}

		format := uvc.StreamFormat{
			Width:  opts.Width,
			Height: opts.Height,
			FPS:    opts.FPS,
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
			FrameBytes:    256 * 1024,
			FrameInterval: time.Duration(float64(time.Second) / opts.FPS),
			WithPTS:       true,
		})

		drv, err := uvc.Install(uvc.DriverConfig{
			Opener:         cam.Opener(),
			BackgroundTask: !opts.PollingMode,
			Logger:         logging.GetLogger("uvc"),
		})
		if err != nil {
			logger.Error("driver install failed", "error", err)
			os.Exit(1)
		}

		var stream *uvc.Stream
		var frameNumber uint64
		streamCfg := uvc.StreamConfig{
			Format:        format,
			FrameBuffers:  opts.FrameBuffers,
			FrameBytes:    opts.FrameBytes,
			TransferSlots: opts.TransferSlots,
			TransferBytes: opts.TransferBytes,
			OnFrame: func(f *uvc.Frame) uvc.FrameOwnership {
				frameNumber++
				pts, _ := f.PTS()
				device := stream.Info().Key()

				snapshots.Store(device, f.Data(), frameNumber, pts)
				if rtpSink != nil && f.Format().Format == uvc.FormatH264 {
					if err := rtpSink.WriteFrame(f.Data()); err != nil {
						logger.Warn("rtp forward failed", "error", err)
					}
				}
				bus.Publish(events.FrameCapturedEvent{
					Device:      device,
					FrameNumber: frameNumber,
					Bytes:       f.Len(),
					PTS:         pts,
					Timestamp:   time.Now().Format(time.RFC3339),
				})

				_ = stream.ReturnFrame(f)
				return uvc.FramePendingReturn
			},
			OnEvent: func(ev uvc.StreamEvent) {
				e := events.StreamErrorEvent{
					Device:    stream.Info().Key(),
					Timestamp: time.Now().Format(time.RFC3339),
				}
				switch se := ev.(type) {
				case uvc.TransferErrorEvent:
					e.Kind = "transfer"
					if se.Err != nil {
						e.Error = se.Err.Error()
					}
				case uvc.OverflowEvent:
					e.Kind = "overflow"
				case uvc.UnderflowEvent:
					e.Kind = "underflow"
				case uvc.DisconnectedEvent:
					e.Kind = "disconnect"
				}
				bus.Publish(e)
			},
		}
		stream, err = drv.OpenStream(streamCfg)
		if err != nil {
			logger.Error("open stream failed", "error", err)
			os.Exit(1)
		}
		bus.Publish(events.StreamStateChangedEvent{
			Device:    stream.Info().Key(),
			State:     stream.State(),
			Timestamp: time.Now().Format(time.RFC3339),
		})

		apiServer := server.NewServer(&server.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Driver:            drv,
			Bus:               bus,
			Snapshots:         snapshots,
			PrometheusHandler: metrics.HTTPHandler(),
		})

		// Live logging reconfiguration on config file edits.
		watcher := config.NewConfigWatcher(
			opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logger,
		)
		watcher.OnReload(func(cfg logging.Config) {
			logging.Initialize(cfg)
		})

		hotplugCtx, hotplugCancel := context.WithCancel(context.Background())
		var monitor *usbmon.Monitor

		hooks.OnStart(func() {
			if err := stream.Start(); err != nil {
				logger.Error("stream start failed", "error", err)
				os.Exit(1)
			}
			bus.Publish(events.StreamStateChangedEvent{
				Device:    stream.Info().Key(),
				State:     stream.State(),
				Timestamp: time.Now().Format(time.RFC3339),
			})

			if opts.HotplugEnabled {
				m, err := usbmon.NewMonitor(usbmon.WholeDevicesOnly())
				if err != nil {
					logger.Warn("hotplug monitoring unavailable", "error", err)
				} else {
					monitor = m
					go runHotplug(hotplugCtx, monitor, bus)
				}
			}

			if err := watcher.Start(); err != nil {
				logger.Warn("config watcher failed, live reload disabled", "error", err)
			}

			if opts.PollingMode {
				go pumpEvents(drv)
			}

			logger.Info("starting http server", "addr", opts.Port)
			if err := apiServer.Start(opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			if err := apiServer.Stop(); err != nil {
				logger.Error("error stopping http server", "error", err)
			}

			hotplugCancel()
			if monitor != nil {
				_ = monitor.Close()
			}
			_ = watcher.Stop()

			if err := stream.Stop(); err != nil && !errors.Is(err, uvc.ErrDisconnected) {
				logger.Warn("stream stop failed", "error", err)
			}
			if err := stream.Close(); err != nil {
				logger.Warn("stream close failed", "error", err)
			}
			if err := drv.Uninstall(); err != nil {
				logger.Warn("driver uninstall failed", "error", err)
			}

			if rtpSink != nil {
				_ = rtpSink.Close()
			}
			recorder.Stop()
		})
	})

	cli.Root().AddCommand(cmd.CreateCaptureCmd())
	cli.Root().AddCommand(cmd.CreateDevicesCmd())

	cli.Run()
}

// pumpEvents drains completions in polling mode until the driver is
// uninstalled.
func pumpEvents(drv *uvc.Driver) {
	for {
		err := drv.HandleEvents(250 * time.Millisecond)
		if err != nil && !errors.Is(err, uvc.ErrTimeout) {
			return
		}
	}
}

// runHotplug translates kernel uevents into bus events.
func runHotplug(ctx context.Context, monitor *usbmon.Monitor, bus *events.Bus) {
	logger := logging.GetLogger("usbmon")
	ch := make(chan usbmon.Event, 16)
	go func() {
		if err := monitor.Run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("hotplug monitor stopped", "error", err)
		}
	}()

	for ev := range ch {
		timestamp := time.Now().Format(time.RFC3339)
		switch ev.Action {
		case usbmon.ActionAdd:
			logger.Info("usb device attached", "vendor", ev.VendorID, "product", ev.ProductID)
			bus.Publish(events.DeviceAttachedEvent{
				VendorID:  ev.VendorID,
				ProductID: ev.ProductID,
				Path:      ev.DevName,
				Timestamp: timestamp,
			})
		case usbmon.ActionRemove:
			logger.Info("usb device detached", "vendor", ev.VendorID, "product", ev.ProductID)
			bus.Publish(events.DeviceDetachedEvent{
				VendorID:  ev.VendorID,
				ProductID: ev.ProductID,
				Path:      ev.DevName,
				Timestamp: timestamp,
			})
		}
	}
}
