package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	Log             *slog.Logger
	defaultLevel    slog.Level
	componentLevels map[string]slog.Level
	levelsMu        sync.RWMutex
	format          string
	output          io.Writer
	pid             int
	loggerCache     sync.Map
)

func init() {
	defaultLevel = slog.LevelInfo
	componentLevels = make(map[string]slog.Level)
	format = "text"
	output = os.Stdout
	pid = os.Getpid()

	Log = slog.New(NewTextHandler(output, nil, ""))
}

func Configure(logFormat string, level LogLevel, components map[string]LogLevel) {
	levelsMu.Lock()
	defaultLevel = parseLevel(string(level))
	format = logFormat
	componentLevels = make(map[string]slog.Level)
	for name, lvl := range components {
		componentLevels[name] = parseLevel(string(lvl))
	}
	w := output
	levelsMu.Unlock()

	loggerCache.Range(func(k, _ any) bool {
		loggerCache.Delete(k)
		return true
	})

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = newJSONHandler(w, "")
	} else {
		handler = NewTextHandler(w, nil, "")
	}

	Log = slog.New(handler)
}

// SetOutput redirects every logger created afterwards.
func SetOutput(w io.Writer) {
	levelsMu.Lock()
	output = w
	levelsMu.Unlock()

	loggerCache.Range(func(k, _ any) bool {
		loggerCache.Delete(k)
		return true
	})
	Log = slog.New(NewTextHandler(w, nil, ""))
}

type TextHandler struct {
	opts      *slog.HandlerOptions
	mu        *sync.Mutex
	w         io.Writer
	attrs     []slog.Attr
	component string
}

func NewTextHandler(w io.Writer, opts *slog.HandlerOptions, component string) *TextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &TextHandler{
		w:         w,
		mu:        &sync.Mutex{},
		opts:      opts,
		component: component,
	}
}

func (h *TextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= getEffectiveLevel(h.component)
}

func (h *TextHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format("2006/01/02 15:04:05.000")...)
	buf = append(buf, fmt.Sprintf(" [%d]", pid)...)

	if h.component != "" {
		buf = append(buf, fmt.Sprintf(" [%s]", h.component)...)
	}

	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	for _, a := range h.attrs {
		buf = append(buf, fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())...)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = append(buf, fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())...)
		return true
	})

	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TextHandler{
		w:         h.w,
		mu:        h.mu,
		opts:      h.opts,
		attrs:     merged,
		component: h.component,
	}
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	newComponent := h.component
	if newComponent != "" {
		newComponent = newComponent + "." + name
	} else {
		newComponent = name
	}
	return &TextHandler{
		w:         h.w,
		mu:        h.mu,
		opts:      h.opts,
		attrs:     h.attrs,
		component: newComponent,
	}
}

func parseLevel(level string) slog.Level {
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
		return slog.LevelInfo
	}
}

func getEffectiveLevel(component string) slog.Level {
	levelsMu.RLock()
	defer levelsMu.RUnlock()

	if level, ok := componentLevels[component]; ok {
		return level
	}

	path := component
	for {
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			break
		}
		path = path[:idx]
		if level, ok := componentLevels[path]; ok {
			return level
		}
	}

	return defaultLevel
}

type JSONHandler struct {
	inner     *slog.JSONHandler
	component string
}

func newJSONHandler(w io.Writer, component string) *JSONHandler {
	return &JSONHandler{
		inner: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}),
		component: component,
	}
}

func (h *JSONHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= getEffectiveLevel(h.component)
}

func (h *JSONHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.component != "" {
		r.AddAttrs(slog.String("component", h.component))
	}
	return h.inner.Handle(ctx, r)
}

func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JSONHandler{
		inner:     h.inner.WithAttrs(attrs).(*slog.JSONHandler),
		component: h.component,
	}
}

func (h *JSONHandler) WithGroup(name string) slog.Handler {
	newComponent := h.component
	if newComponent != "" {
		newComponent = newComponent + "." + name
	} else {
		newComponent = name
	}
	return &JSONHandler{
		inner:     h.inner,
		component: newComponent,
	}
}

func Get(name string) *slog.Logger {
	if l, ok := loggerCache.Load(name); ok {
		return l.(*slog.Logger)
	}

	levelsMu.RLock()
	w, f := output, format
	levelsMu.RUnlock()

	var handler slog.Handler
	if strings.ToLower(f) == "json" {
		handler = newJSONHandler(w, name)
	} else {
		handler = NewTextHandler(w, nil, name)
	}

	l := slog.New(handler)
	loggerCache.Store(name, l)
	return l
}

func Component(name string) *slog.Logger {
	return Get(name)
}

func SetComponentLevel(name string, level LogLevel) {
	levelsMu.Lock()
	componentLevels[name] = parseLevel(string(level))
	levelsMu.Unlock()
	loggerCache.Delete(name)
}

func ClearComponentLevel(name string) {
	levelsMu.Lock()
	delete(componentLevels, name)
	levelsMu.Unlock()
	loggerCache.Delete(name)
}

func GetComponentLevels() map[string]LogLevel {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	result := make(map[string]LogLevel)
	for name, level := range componentLevels {
		result[name] = levelToLogLevel(level)
	}
	return result
}

func GetDefaultLevel() LogLevel {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	return levelToLogLevel(defaultLevel)
}

// ParseLevel normalises a level name and rejects names it does not know.
func ParseLevel(level string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(level)); l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return l, nil
	case "warning":
		return LogLevelWarn, nil
	}
	return "", fmt.Errorf("unknown level %q", level)
}

func levelToLogLevel(level slog.Level) LogLevel {
	switch level {
	case slog.LevelDebug:
		return LogLevelDebug
	case slog.LevelInfo:
		return LogLevelInfo
	case slog.LevelWarn:
		return LogLevelWarn
	case slog.LevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

type PortAttrs struct {
	Name   string
	Driver string
	MAC    string
	RunID  string
}

func WithPort(logger *slog.Logger, attrs PortAttrs) *slog.Logger {
	args := make([]any, 0, 8)

	if attrs.Name != "" {
		args = append(args, "port", attrs.Name)
	}
	if attrs.Driver != "" {
		args = append(args, "driver", attrs.Driver)
	}
	if attrs.MAC != "" {
		args = append(args, "mac", attrs.MAC)
	}
	if attrs.RunID != "" {
		args = append(args, "run_id", attrs.RunID)
	}

	return logger.With(args...)
}
