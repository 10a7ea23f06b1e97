package cache

import (
	"sort"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// Key 由 endpoint 与按名称排序的查询参数生成确定性的缓存 key
//
// 参数以 "_名称.值" 追加，名称与值中字母数字之外的字节转义为 "-XX"，
// 不同的参数组合不会得到相同的 key。
//
//	Key("/api/devices", map[string]string{"b": "2", "a": "1"}) // "api_devices_a.1_b.2"
//	Key("/api/devices", map[string]string{"q": "a b"})         // "api_devices_q.a-20b"
func Key(endpoint string, query map[string]string) string {
	var sb strings.Builder
	sb.WriteString(Sanitize(strings.Trim(endpoint, "/")))

	if len(query) > 0 {
		names := make([]string, 0, len(query))
		for k := range query {
			names = append(names, k)
		}
		sort.Strings(names)

		for _, k := range names {
			sb.WriteByte('_')
			escapeKeyPart(&sb, k)
			sb.WriteByte('.')
			escapeKeyPart(&sb, query[k])
		}
	}

	return sb.String()
}

func escapeKeyPart(sb *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
			sb.WriteByte(b)
		default:
			sb.WriteByte('-')
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0x0f])
		}
	}
}

// Sanitize 将 [A-Za-z0-9._-] 之外的字符替换为 '_'
func Sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, key)
}
