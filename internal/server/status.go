package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/camforge/uvchost/internal/metrics"
	"github.com/camforge/uvchost/internal/version"
)

// VersionResponse is the /api/version body wrapper.
type VersionResponse struct {
	Body version.Info
}

// HealthResponse is the /api/health body wrapper.
type HealthResponse struct {
	Body HealthData
}

// HealthData reports API liveness.
type HealthData struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// StreamStatus describes one open stream and its counters.
type StreamStatus struct {
	Device          string `json:"device" example:"046d:0825" doc:"Device identifier"`
	Product         string `json:"product,omitempty" example:"HD Webcam C270" doc:"Product string"`
	Serial          string `json:"serial,omitempty" doc:"Serial number"`
	Format          string `json:"format" example:"1280x720@30.0 MJPEG" doc:"Negotiated stream format"`
	State           string `json:"state" example:"streaming" doc:"Stream lifecycle state"`
	FramesDelivered uint64 `json:"frames_delivered" doc:"Frames handed to the application"`
	FreeBuffers     int    `json:"free_buffers" doc:"Frame buffers currently free"`
	FrameBytes      uint64 `json:"frame_bytes" doc:"Total delivered payload bytes"`
	Overflows       uint64 `json:"overflows" doc:"Frames discarded as oversized"`
	Underflows      uint64 `json:"underflows" doc:"Frames dropped with no buffer free"`
	TransferErrors  uint64 `json:"transfer_errors" doc:"Failed transfers"`
	Disconnects     uint64 `json:"disconnects" doc:"Disconnects observed"`
}

// StatusResponse is the /api/status body wrapper.
type StatusResponse struct {
	Body StatusData
}

// StatusData lists all open streams.
type StatusData struct {
	Streams []StreamStatus `json:"streams" doc:"Open capture streams"`
}

// DeviceData describes one opened device function.
type DeviceData struct {
	Device    string   `json:"device" example:"046d:0825" doc:"Device identifier"`
	VendorID  uint16   `json:"vendor_id" example:"1133" doc:"USB vendor identifier"`
	ProductID uint16   `json:"product_id" example:"2085" doc:"USB product identifier"`
	Product   string   `json:"product,omitempty" doc:"Product string"`
	Serial    string   `json:"serial,omitempty" doc:"Serial number"`
	Formats   []string `json:"formats" doc:"Advertised stream formats"`
}

// DevicesResponse is the /api/devices body wrapper.
type DevicesResponse struct {
	Body DevicesData
}

// DevicesData lists opened devices.
type DevicesData struct {
	Devices []DeviceData `json:"devices" doc:"Devices with an open stream"`
}

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get build and version information",
		Tags:        []string{"status"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		return &VersionResponse{Body: version.Get()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "List open capture streams with counters",
		Tags:        []string{"status"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*StatusResponse, error) {
		out := StatusData{Streams: []StreamStatus{}}
		if s.opts.Driver == nil {
			return &StatusResponse{Body: out}, nil
		}
		for _, stream := range s.opts.Driver.Streams() {
			info := stream.Info()
			status := StreamStatus{
				Device:          info.Key(),
				Product:         info.Product,
				Serial:          info.Serial,
				Format:          stream.Format().String(),
				State:           stream.State(),
				FramesDelivered: stream.FramesDelivered(),
				FreeBuffers:     stream.FreeBuffers(),
			}
			if stats := metrics.GetStats(info.Key()); stats != nil {
				status.FrameBytes = stats.Bytes
				status.Overflows = stats.Overflows
				status.Underflows = stats.Underflows
				status.TransferErrors = stats.TransferErrors
				status.Disconnects = stats.Disconnects
			}
			out.Streams = append(out.Streams, status)
		}
		return &StatusResponse{Body: out}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "Devices",
		Description: "List devices with an open stream",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*DevicesResponse, error) {
		out := DevicesData{Devices: []DeviceData{}}
		if s.opts.Driver == nil {
			return &DevicesResponse{Body: out}, nil
		}
		for _, stream := range s.opts.Driver.Streams() {
			info := stream.Info()
			formats := make([]string, 0, len(info.Formats))
			for _, f := range info.Formats {
				formats = append(formats, f.String())
			}
			out.Devices = append(out.Devices, DeviceData{
				Device:    info.Key(),
				VendorID:  info.VendorID,
				ProductID: info.ProductID,
				Product:   info.Product,
				Serial:    info.Serial,
				Formats:   formats,
			})
		}
		return &DevicesResponse{Body: out}, nil
	})
}
