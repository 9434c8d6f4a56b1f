// Package server exposes the daemon's HTTP API: status and device
// listing, log history with SSE streaming, frame snapshots and
// Prometheus metrics.
package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/camforge/uvchost/internal/events"
	"github.com/camforge/uvchost/internal/logging"
	"github.com/camforge/uvchost/internal/sink"
	"github.com/camforge/uvchost/internal/version"
	"github.com/camforge/uvchost/pkg/uvc"
)

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string

	Driver    *uvc.Driver
	Bus       *events.Bus
	Snapshots *sink.SnapshotStore

	// PrometheusHandler serves GET /metrics when set.
	PrometheusHandler http.Handler
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	opts       *Options
	logger     *slog.Logger
}

// NewServer builds the server and registers all routes.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("uvchost API", version.String())
	config.Info.Description = "USB video capture status and control API"
	// Relative paths in the OpenAPI doc, so it works behind any host.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	s := &Server{
		api:    api,
		mux:    mux,
		opts:   opts,
		logger: logging.GetLogger("server"),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	mux.HandleFunc("GET /api/snapshot/{device}", s.handleSnapshot)

	s.registerStatusRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()

	return s
}

// GetMux returns the underlying mux, for tests and extra handlers.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// Start serves on addr until Stop or a listen error.
func (s *Server) Start(addr string) error {
	s.logger.Info("api server starting", "addr", addr)
	s.logger.Info("openapi documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open connections;
// SSE clients would otherwise hold a graceful shutdown forever.
func (s *Server) Stop() error {
	s.logger.Info("api server stopping")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var credentials string
		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format")
				return
			}
			credentials = string(decoded)
		} else if queryAuth := ctx.Query("auth"); queryAuth != "" {
			// EventSource cannot set headers, so SSE clients pass
			// base64 credentials as a query parameter.
			decoded, err := base64.StdEncoding.DecodeString(queryAuth)
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format")
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, message string) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="uvchost API"`)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, message)
}

// withAuth returns the security requirement for basic auth routes.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
