package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHello(t *testing.T) {
	t.Parallel()

	hello, err := DecodeHello([]byte(`{"path":"/docs/"}`))
	require.NoError(t, err)
	assert.Equal(t, "/docs/", hello.Path)

	for _, bad := range []string{`{}`, `{"path":""}`, `{"path":12}`, `[]`, `not json`} {
		_, err := DecodeHello([]byte(bad))
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, ErrInvalidFrame), bad)
	}
}

func TestDecodeReplyResult(t *testing.T) {
	t.Parallel()

	reply, err := DecodeReply([]byte(`{"type":2,"id":1,"ctnt":{"title":"pagable"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindScript, reply.Type)
	assert.Equal(t, uint64(1), reply.ID)
	assert.NoError(t, reply.Err())
	assert.JSONEq(t, `{"title":"pagable"}`, string(reply.Content))

	reply, err = DecodeReply([]byte(`{"type":2,"id":2,"ctnt":null}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(reply.Content))

	reply, err = DecodeReply([]byte(`{"type":2,"id":3}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(reply.Content))
}

func TestDecodeReplyError(t *testing.T) {
	t.Parallel()

	reply, err := DecodeReply([]byte(`{"type":2.1,"id":4,"mesg":"boom","name":"TypeError","caus":null}`))
	require.NoError(t, err)
	assert.Equal(t, KindScriptError, reply.Type)

	var scriptErr *ScriptError
	require.True(t, errors.As(reply.Err(), &scriptErr))
	assert.Equal(t, "TypeError", scriptErr.Name)
	assert.Equal(t, "boom", scriptErr.Message)
	assert.Empty(t, scriptErr.Cause)
	assert.Equal(t, "frontend error (2.1): TypeError: boom", scriptErr.Error())

	reply, err = DecodeReply([]byte(`{"type":2.1,"id":5,"mesg":"bad","name":null,"caus":"disk full"}`))
	require.NoError(t, err)
	assert.Equal(t, "frontend error (2.1): Error: bad (cause: disk full)", reply.Err().Error())
}

func TestDecodeReplyRejectsUnknownTypes(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{
		`{"type":1,"id":1,"ctnt":"x"}`, `{"type":2.5,"id":1}`, `{"ctnt":1,"id":1}`, `{"type":"2","id":1}`,
		`{"type":2.1,"id":1,"mesg":7}`, `{"type":2,"ctnt":1}`, `{"type":2,"id":0}`, `{"type":2,"id":1.5}`,
	} {
		_, err := DecodeReply([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidFrame, bad)
	}
}

func TestRenderFrameEncoding(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewRender(ContentMarkdown, "<h1>Hi</h1>", nil, nil, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":1,"meta":{},"initial":true,"ctyp":"md","ctnt":"<h1>Hi</h1>"}`, string(data))

	data, err = json.Marshal(NewRender(ContentComponent, "ok", map[string]any{"title": "T"}, []string{"styles/index.css"}, false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":1,"meta":{"title":"T"},"initial":false,"ctyp":"component","ctnt":"ok","requires":["styles/index.css"]}`, string(data))

	data, err = json.Marshal(NewScript(7, "return 1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":2,"id":7,"ctnt":"return 1"}`, string(data))
}
