package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/camforge/uvchost/pkg/uvc"
)

// handleSnapshot serves the latest retained frame as raw bytes. It is
// registered on the mux directly; Huma's JSON pipeline is wrong for
// binary payloads.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.checkBasicAuth(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="uvchost API"`)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	device := r.PathValue("device")
	if s.opts.Snapshots == nil {
		http.Error(w, "snapshots disabled", http.StatusNotFound)
		return
	}
	snap := s.opts.Snapshots.Latest(device)
	if snap == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", snapshotContentType(s.deviceFormat(device)))
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.Data)))
	w.Header().Set("X-Frame-Number", strconv.FormatUint(snap.FrameNumber, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Data)
}

// checkBasicAuth mirrors the huma middleware for plain mux handlers.
func (s *Server) checkBasicAuth(r *http.Request) bool {
	if s.opts.AuthUsername == "" || s.opts.AuthPassword == "" {
		return true
	}
	username, password, ok := r.BasicAuth()
	return ok && username == s.opts.AuthUsername && password == s.opts.AuthPassword
}

func (s *Server) deviceFormat(device string) uvc.FormatType {
	if s.opts.Driver == nil {
		return uvc.FormatUndefined
	}
	for _, stream := range s.opts.Driver.Streams() {
		if strings.EqualFold(stream.Info().Key(), device) {
			return stream.Format().Format
		}
	}
	return uvc.FormatUndefined
}

func snapshotContentType(format uvc.FormatType) string {
	if format == uvc.FormatMJPEG {
		return "image/jpeg"
	}
	return "application/octet-stream"
}
