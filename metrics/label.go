package metrics

// Label 指标标签
//
// 标签值应当是低基数的，例如 method、status_class、tier，
// 不要使用请求 ID、设备 ID 之类的值。
type Label struct {
	Key   string
	Value string
}

// L 创建一个 Label
//
//	counter.Inc(ctx, metrics.L("tier", "memory"))
func L(key, value string) Label {
	return Label{
		Key:   key,
		Value: value,
	}
}
