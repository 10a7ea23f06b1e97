package clog

import (
	"log/slog"
	"strings"
)

// NamespaceKey 日志中命名空间的字段名
const NamespaceKey = "namespace"

func namespaceString(options *options) string {
	if options == nil || len(options.namespaceParts) == 0 {
		return ""
	}
	return strings.Join(options.namespaceParts, ".")
}

func addNamespaceFields(options *options, attrs *[]slog.Attr) {
	if ns := namespaceString(options); ns != "" {
		*attrs = append(*attrs, slog.String(NamespaceKey, ns))
	}
}
