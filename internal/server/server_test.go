package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/camforge/uvchost/internal/events"
	"github.com/camforge/uvchost/internal/logging"
	"github.com/camforge/uvchost/internal/metrics"
	"github.com/camforge/uvchost/internal/sink"
	"github.com/camforge/uvchost/pkg/uvc"
	"github.com/camforge/uvchost/pkg/uvc/uvctest"
)

func doRequest(s *Server, method, path string, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
	}
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func TestHealthSkipsAuth(t *testing.T) {
	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Bus:          events.New(),
	})

	rec := doRequest(s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health body = %s", rec.Body.String())
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Bus:          events.New(),
	})

	if rec := doRequest(s, http.MethodGet, "/api/status", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/api/status", "admin:wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/api/status", "admin:secret"); rec.Code != http.StatusOK {
		t.Errorf("valid credentials: status = %d, want 200", rec.Code)
	}
}

func TestStatusReportsStreams(t *testing.T) {
	format := uvc.StreamFormat{Width: 640, Height: 480, FPS: 30, Format: uvc.FormatMJPEG}
	cam := uvctest.NewCamera(uvctest.CameraConfig{
		Info: uvc.DeviceInfo{
			VendorID:  0x046d,
			ProductID: 0x0825,
			Product:   "HD Webcam C270",
			Formats:   []uvc.StreamFormat{format},
		},
		Format:     format,
		FrameBytes: 4096,
	})
	drv, err := uvc.Install(uvc.DriverConfig{Opener: cam.Opener(), BackgroundTask: true})
	if err != nil {
		t.Fatal(err)
	}
	defer drv.Uninstall()

	var stream *uvc.Stream
	stream, err = drv.OpenStream(uvc.StreamConfig{
		Format: format,
		OnFrame: func(f *uvc.Frame) uvc.FrameOwnership {
			_ = stream.ReturnFrame(f)
			return uvc.FramePendingReturn
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	metrics.DeleteStats("046d:0825")
	metrics.RecordFrame("046d:0825", 1000)

	s := NewServer(&Options{Driver: drv, Bus: events.New()})

	rec := doRequest(s, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var data StatusData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if len(data.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(data.Streams))
	}
	got := data.Streams[0]
	if got.Device != "046d:0825" || got.State != "opened" {
		t.Errorf("stream = %+v", got)
	}
	if got.FrameBytes != 1000 {
		t.Errorf("frame bytes = %d, want 1000 from stats cache", got.FrameBytes)
	}

	rec = doRequest(s, http.MethodGet, "/api/devices", "")
	var devices DevicesData
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatal(err)
	}
	if len(devices.Devices) != 1 || devices.Devices[0].Product != "HD Webcam C270" {
		t.Errorf("devices = %+v", devices.Devices)
	}

	metrics.DeleteStats("046d:0825")
}

func TestVersionEndpoint(t *testing.T) {
	s := NewServer(&Options{Bus: events.New()})

	rec := doRequest(s, http.MethodGet, "/api/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d", rec.Code)
	}
	var body struct {
		Version   string `json:"version"`
		GoVersion string `json:"go_version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Version == "" || body.GoVersion == "" {
		t.Errorf("version body = %s", rec.Body.String())
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	store := sink.NewSnapshotStore()
	store.Store("046d:0825", []byte{0xff, 0xd8, 0xff}, 12, 0)

	s := NewServer(&Options{Bus: events.New(), Snapshots: store})

	rec := doRequest(s, http.MethodGet, "/api/snapshot/046d:0825", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	if rec.Body.Len() != 3 || rec.Body.Bytes()[0] != 0xff {
		t.Errorf("snapshot body = %v", rec.Body.Bytes())
	}
	if got := rec.Header().Get("X-Frame-Number"); got != "12" {
		t.Errorf("frame number header = %q", got)
	}

	if rec := doRequest(s, http.MethodGet, "/api/snapshot/none", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown device: status = %d, want 404", rec.Code)
	}
}

func TestSnapshotRequiresAuth(t *testing.T) {
	store := sink.NewSnapshotStore()
	store.Store("046d:0825", []byte{1}, 1, 0)

	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Bus:          events.New(),
		Snapshots:    store,
	})

	if rec := doRequest(s, http.MethodGet, "/api/snapshot/046d:0825", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/api/snapshot/046d:0825", "admin:secret"); rec.Code != http.StatusOK {
		t.Errorf("valid credentials: status = %d, want 200", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	logging.GetLogger("uvc").Info("stream opened", "device", "046d:0825")

	s := NewServer(&Options{Bus: events.New()})

	rec := doRequest(s, http.MethodGet, "/api/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status = %d", rec.Code)
	}

	var data LogsData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, entry := range data.Entries {
		if entry.Module == "uvc" && entry.Message == "stream opened" {
			found = true
		}
	}
	if !found {
		t.Errorf("logged entry missing from history, got %d entries", len(data.Entries))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(&Options{
		Bus:               events.New(),
		PrometheusHandler: metrics.HTTPHandler(),
	})

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty metrics body")
	}
}
