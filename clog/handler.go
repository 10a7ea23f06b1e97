package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// clogHandler 封装 slog.Handler，提供动态级别
type clogHandler struct {
	slog.Handler
	levelVar *slog.LevelVar
}

// newHandler 按配置构造 handler：writer -> handler options -> json/text handler
func newHandler(config *Config, options *options) (*clogHandler, error) {
	w, err := resolveWriter(config, options)
	if err != nil {
		return nil, err
	}

	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: newReplaceAttr(config),
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &clogHandler{Handler: handler, levelVar: levelVar}, nil
}

func resolveWriter(config *Config, options *options) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "buffer":
		if options.buffer != nil {
			return options.buffer, nil
		}
		return nil, fmt.Errorf("buffer output requires options.buffer to be set")
	default:
		if dir := filepath.Dir(config.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

// newReplaceAttr 统一 Level/Time/Source 的输出格式
func newReplaceAttr(config *Config) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			if level, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(levelLabel(level))
			}
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
		case slog.SourceKey:
			if source, ok := a.Value.Any().(*slog.Source); ok {
				fileName := trimSourcePath(source.File, config.SourceRoot)
				return slog.String("caller", fmt.Sprintf("%s:%d", fileName, source.Line))
			}
		}
		return a
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "DEBUG"
	case level <= slog.LevelInfo:
		return "INFO"
	case level <= slog.LevelWarn:
		return "WARN"
	case level <= slog.LevelError:
		return "ERROR"
	default:
		return "FATAL"
	}
}

func trimSourcePath(fileName, sourceRoot string) string {
	if sourceRoot != "" {
		relPath, err := filepath.Rel(sourceRoot, fileName)
		if err == nil && !strings.HasPrefix(relPath, "..") {
			return relPath
		}
	}
	if idx := strings.Index(fileName, "warden"); idx != -1 {
		return fileName[idx:]
	}
	return fileName
}

// SetLevel 动态调整日志级别
func (h *clogHandler) SetLevel(level Level) error {
	if level < DebugLevel || level > FatalLevel {
		return fmt.Errorf("invalid level: %d", level)
	}
	h.levelVar.Set(level.slogLevel())
	return nil
}
