// Package serializer 提供缓存负载的序列化实现。
package serializer

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/warden/xerrors"
)

// ErrUnsupportedSerializer 不支持的序列化器类型
var ErrUnsupportedSerializer = xerrors.New("unsupported serializer type")

// Serializer 序列化接口
type Serializer interface {
	// Name 序列化器名称，同时作为数据文件扩展名
	Name() string
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// JSONSerializer JSON 序列化器
type JSONSerializer struct{}

func (j *JSONSerializer) Name() string { return "json" }

func (j *JSONSerializer) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (j *JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

// MessagePackSerializer MessagePack 序列化器
//
// 体积比 JSON 小，但落盘文件不可直接阅读。
type MessagePackSerializer struct{}

func (m *MessagePackSerializer) Name() string { return "msgpack" }

func (m *MessagePackSerializer) Marshal(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (m *MessagePackSerializer) Unmarshal(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}

// New 创建序列化器
//
//   - "json"（默认）
//   - "msgpack"
func New(serializerType string) (Serializer, error) {
	switch serializerType {
	case "json", "":
		return &JSONSerializer{}, nil
	case "msgpack":
		return &MessagePackSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrUnsupportedSerializer, "%q", serializerType)
	}
}
