package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddsTypeDiscriminator(t *testing.T) {
	data, err := Encode(TranslateRequest{Text: "Hola", SourceLang: "auto", TargetLang: "English", RequestID: "r1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TRANSLATE_REQUEST","text":"Hola","sourceLang":"auto","targetLang":"English","requestId":"r1"}`, string(data))
}

func TestEncodeEmptyMessage(t *testing.T) {
	data, err := Encode(GetStatus{})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"GET_STATUS"}`, string(data))
}

func TestDecodeRequestVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want Request
	}{
		{`{"type":"TRANSLATE_REQUEST","text":"Bonjour","sourceLang":"French","targetLang":"English","requestId":"a"}`,
			TranslateRequest{Text: "Bonjour", SourceLang: "French", TargetLang: "English", RequestID: "a"}},
		{`{"type":"INIT_ENGINE","modelId":"qwen2:1.5b"}`, InitEngine{ModelID: "qwen2:1.5b"}},
		{`{"type":"GET_STATUS"}`, GetStatus{}},
		{`{"type":"CLEAR_CACHE"}`, ClearCache{}},
	}
	for _, tc := range cases {
		got, err := DecodeRequest([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestDecodeRejectsUnknownAndMissingType(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"type":"TRANSLATE_RESPONSE"}`))
	assert.ErrorContains(t, err, "unknown request type")

	_, err = DecodeReply([]byte(`{"text":"x"}`))
	assert.ErrorContains(t, err, "missing type")

	_, err = DecodeReply([]byte(`not json`))
	assert.Error(t, err)
}

func TestReplyRoundTripKeepsNullHardware(t *testing.T) {
	data, err := Encode(StatusResponse{EngineReady: false})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hardware":null`)

	reply, err := DecodeReply(data)
	require.NoError(t, err)
	status, ok := reply.(StatusResponse)
	require.True(t, ok)
	assert.Nil(t, status.Hardware)
}

func TestTranslateResponseWireShape(t *testing.T) {
	data, err := Encode(TranslateResponse{
		RequestID: "r9",
		Result:    TranslationResult{Translation: "Hello", KeyPhrase: "hola", UsageNote: "greeting"},
		Source:    SourceLocal,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TRANSLATE_RESPONSE","requestId":"r9","source":"local",
		"result":{"translation":"Hello","meaning":"","key_phrase":"hola","pronunciation":"","usage_note":"greeting"}}`, string(data))
}

func TestSourceValid(t *testing.T) {
	assert.True(t, SourceCloud.Valid())
	assert.False(t, Source("disk").Valid())
}
