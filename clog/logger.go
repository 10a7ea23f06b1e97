// Package clog 为 warden 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层 slog 实现
//   - 层级命名空间：每个组件通过 WithNamespace 追加自己的名字（如 "warden.breaker"）
//   - 可从 Context 中提取字段（trace_id、request_id 等）
//   - 运行时动态调整级别
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json"})
//	logger.Info("device list refreshed", clog.Int("count", 3))
//
// 组件内部统一这样派生：
//
//	logger = logger.WithNamespace("cache")
package clog

import "context"

// Logger 日志接口
//
// 支持 Debug、Info、Warn、Error、Fatal 五个级别，每个级别都有带 Context 的版本。
// Fatal 记录后会调用 os.Exit(1)。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本会按 WithContextField 配置提取字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建带预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 追加命名空间，例如 "warden" + "guard" => "warden.guard"
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别
	SetLevel(level Level) error

	// Flush 同步缓冲区
	Flush()
}
