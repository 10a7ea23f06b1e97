package clog

import "bytes"

// ContextField 定义从 Context 中提取字段的规则
type ContextField struct {
	Key       any    // Context 中存储的键
	FieldName string // 日志中的字段名
}

// Option 函数式选项
type Option func(*options)

type options struct {
	namespaceParts []string
	contextFields  []ContextField
	buffer         *bytes.Buffer // 测试用
}

// WithNamespace 设置日志命名空间，多级以 "." 连接
//
//	clog.WithNamespace("warden", "guard")
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 添加自定义的 Context 字段提取规则
//
//	clog.WithContextField(requestIDKey{}, "request_id")
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{
			Key:       key,
			FieldName: fieldName,
		})
	}
}

// WithStandardContext 提取常用字段：trace_id、request_id、call_id
func WithStandardContext() Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields,
			ContextField{Key: "trace_id", FieldName: "trace_id"},
			ContextField{Key: "request_id", FieldName: "request_id"},
			ContextField{Key: "call_id", FieldName: "call_id"},
		)
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		namespaceParts: []string{},
		contextFields:  []ContextField{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
