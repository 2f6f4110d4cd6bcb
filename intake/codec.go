package intake

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/bfametrics/xerrors"
)

// 支持的编码
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec 事件编解码器
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// NewCodec 按名称返回编解码器
func NewCodec(name string) (Codec, error) {
	switch name {
	case CodecJSON, "":
		return jsonCodec{}, nil
	case CodecMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, xerrors.Invalid("unsupported codec %q", name)
	}
}

// codecForContentType 按 HTTP Content-Type 选择编解码器，未知类型按 JSON 处理
func codecForContentType(contentType string) Codec {
	switch contentType {
	case "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
		return msgpackCodec{}
	default:
		return jsonCodec{}
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgpack }

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// decodeEvent 解码事件，失败时带 DECODE_FAILED 错误码
func decodeEvent(codec Codec, data []byte) (*Event, error) {
	var ev Event
	if err := codec.Unmarshal(data, &ev); err != nil {
		return nil, xerrors.WithCode(xerrors.Wrapf(err, "decode %s event", codec.Name()), xerrors.CodeDecode)
	}
	return &ev, nil
}
