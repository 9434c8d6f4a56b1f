package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex         sync.RWMutex
	initialized   bool
	current       Config
	globalLevel   = &slog.LevelVar{}
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
	history       *RingBuffer
	entryCallback EntryCallback
)

// Initialize sets up the logging system. Module loggers created before
// this call are rebuilt so they pick up the configured format and the
// ring buffer.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	current = config
	initialized = true
	history = NewRingBuffer(historySize)
	globalLevel.Set(parseLevel(config.Level, slog.LevelInfo))

	for module, levelVar := range moduleLevels {
		levelVar.Set(moduleLevel(config, module))
		moduleLoggers[module] = slog.New(newHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, globalLevel)))
}

// GetLogger returns the logger for a module, creating it on first use.
// Module levels come from Config.Modules, falling back to the global
// level.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, ok := moduleLoggers[module]; ok {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if initialized {
		levelVar.Set(moduleLevel(current, module))
		format = current.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(newHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = levelVar
	return logger
}

// History returns the ring buffer of recent log entries, or nil before
// Initialize.
func History() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return history
}

// SetEntryCallback registers a callback invoked for every new log
// entry. Used to forward logs to SSE clients without an import cycle.
func SetEntryCallback(cb EntryCallback) {
	mutex.Lock()
	entryCallback = cb
	mutex.Unlock()
}

func currentSinks() (*RingBuffer, EntryCallback) {
	mutex.RLock()
	defer mutex.RUnlock()
	return history, entryCallback
}

// newHandler builds the output chain: stdout when connected to
// something useful, journald when running under systemd, and always the
// ring buffer for the /logs endpoint.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if stdoutUsable() {
		handlers = append(handlers, stdout)
	}
	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutUsable reports whether stdout goes somewhere worth writing:
// terminal, pipe, socket or regular file, but not /dev/null.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func moduleLevel(config Config, module string) slog.Level {
	level := parseLevel(config.Level, slog.LevelInfo)
	if override, ok := config.Modules[module]; ok {
		level = parseLevel(override, level)
	}
	return level
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
