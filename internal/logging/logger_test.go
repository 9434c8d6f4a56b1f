package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels = make(map[string]*slog.LevelVar)
	initialized = false
	current = Config{}
	history = nil
	entryCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"uvc":    "debug",
			"server": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
	}{
		{"uvc", true, true},
		{"server", false, false},
		{"other", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			if got := h.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if !h.Enabled(context.Background(), slog.LevelWarn) {
				t.Error("warn should always be enabled here")
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("uvc")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("pre-Initialize logger should default to info")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"uvc": "debug"},
	})

	after := GetLogger("uvc")
	if before != after {
		t.Error("logger should be cached across Initialize")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should pick up the new level via its LevelVar")
	}
}

func TestBufferHandlerCapturesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text"})

	var forwarded []LogEntry
	SetEntryCallback(func(e LogEntry) { forwarded = append(forwarded, e) })

	logger := GetLogger("uvc").With("device", "046d:0825")
	logger.Info("stream opened", "frame_buffers", 3)

	entries := History().ReadAll()
	if len(entries) == 0 {
		t.Fatal("no entries captured in the ring buffer")
	}
	last := entries[len(entries)-1]
	if last.Module != "uvc" {
		t.Errorf("module = %q, want uvc", last.Module)
	}
	if last.Message != "stream opened" {
		t.Errorf("message = %q", last.Message)
	}
	if last.Attributes["device"] != "046d:0825" {
		t.Errorf("device attribute = %v", last.Attributes["device"])
	}
	if last.Seq == 0 {
		t.Error("entry has no sequence number")
	}
	if len(forwarded) == 0 || forwarded[len(forwarded)-1].Seq != last.Seq {
		t.Error("callback did not receive the stamped entry")
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Timestamp: time.Now(), Message: string(rune('a' + i))})
	}
	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("Count = %d, want 3", len(entries))
	}
	if entries[0].Message != "c" || entries[2].Message != "e" {
		t.Errorf("entries out of order: %q ... %q", entries[0].Message, entries[2].Message)
	}
	if entries[0].Seq >= entries[2].Seq {
		t.Error("sequence numbers not monotonic")
	}
}

func TestMultiHandlerWritesOnce(t *testing.T) {
	var buf bytes.Buffer
	debugH := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoH := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugH, infoH))
	logger.Debug("debug only message")

	if n := strings.Count(buf.String(), "debug only message"); n != 1 {
		t.Errorf("message written %d times, want 1 (only the debug handler)", n)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input, slog.LevelInfo); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
