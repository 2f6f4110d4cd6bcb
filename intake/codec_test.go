package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/bfametrics/xerrors"
)

func TestNewCodec(t *testing.T) {
	for _, name := range []string{CodecJSON, CodecMsgpack} {
		codec, err := NewCodec(name)
		require.NoError(t, err)
		assert.Equal(t, name, codec.Name())
	}

	codec, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, codec.Name())

	_, err = NewCodec("protobuf")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestCodecDecodeEvent(t *testing.T) {
	want := &Event{
		ID:     "evt-1",
		Job:    "team/proj",
		Causes: []CauseRecord{{Name: "OOM", Categories: []string{"infra"}}},
		Squash: boolPtr(true),
	}

	for _, name := range []string{CodecJSON, CodecMsgpack} {
		t.Run(name, func(t *testing.T) {
			codec, err := NewCodec(name)
			require.NoError(t, err)
			data, err := codec.Marshal(want)
			require.NoError(t, err)

			got, err := decodeEvent(codec, data)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeEventError(t *testing.T) {
	_, err := decodeEvent(msgpackCodec{}, []byte{0xc1})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeDecode, xerrors.GetCode(err))
}

func TestCodecForContentType(t *testing.T) {
	assert.Equal(t, CodecMsgpack, codecForContentType("application/msgpack").Name())
	assert.Equal(t, CodecMsgpack, codecForContentType("application/x-msgpack").Name())
	assert.Equal(t, CodecJSON, codecForContentType("application/json").Name())
	assert.Equal(t, CodecJSON, codecForContentType("").Name())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "bfa.events", cfg.NATS.Subject)
	assert.Equal(t, "bfa-events", cfg.Kafka.Topic)
	assert.True(t, cfg.CountUnmatched)

	assert.ErrorIs(t, (&Config{}).Validate(), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, (&Config{Codec: "xml", HTTP: HTTPConfig{Enabled: true}}).Validate(), xerrors.ErrInvalidInput)
}

func TestKafkaClientOpts(t *testing.T) {
	assert.Len(t, KafkaClientOpts(KafkaConfig{Topic: "t"}), 1)
	assert.Len(t, KafkaClientOpts(KafkaConfig{Topic: "t", Group: "g"}), 3)
}
