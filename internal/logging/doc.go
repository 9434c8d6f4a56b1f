// Package logging provides structured logging with per-module levels.
//
// Output is routed automatically: to the systemd journal when running
// under journald, to stdout when connected to a terminal, pipe or
// file, and always into an in-memory ring buffer that backs the /logs
// endpoint and the SSE log stream.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"uvc":    "debug",
//			"server": "warn",
//		},
//	})
//
// Then take a logger per module:
//
//	logger := logging.GetLogger("uvc")
//	logger.Info("stream opened", "device", "046d:0825")
//
// Under journald, structured attributes become journal fields:
//
//	journalctl -t uvchostd -f
//	journalctl -t uvchostd MODULE=uvc
//	journalctl -t uvchostd DEVICE=046d:0825 -p err
package logging
