package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommand_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.EncodeCommand([]byte("SET"), []byte("foo"), []byte("bar")))

	dec := NewDecoder(&buf)
	args, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("SET"), []byte("foo"), []byte("bar")}, args)
}

func TestDecode_MultipleCommandsInSequence(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.EncodeCommand([]byte("GET"), []byte("a")))
	require.NoError(t, enc.EncodeCommand([]byte("DEL"), []byte("b")))

	dec := NewDecoder(&buf)
	first, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("GET"), []byte("a")}, first)

	second, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("DEL"), []byte("b")}, second)

	_, err = dec.Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecode_EmptyValueIsPreserved(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.EncodeCommand([]byte("SET"), []byte("k"), []byte("")))

	dec := NewDecoder(&buf)
	args, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, []byte(""), args[2])
}

func TestDecode_MalformedFrameIsRejected(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte("not-a-frame\r\n")))
	_, err := dec.Decode()
	require.ErrorIs(t, err, ErrProtocol)
}

func TestEncoder_ResponseForms(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.WriteSimpleString("OK"))
	require.NoError(t, enc.WriteBulkString([]byte("value")))
	require.NoError(t, enc.WriteBulkString(nil))
	require.NoError(t, enc.WriteInteger(1))
	require.NoError(t, enc.WriteError("key not found"))

	require.Equal(t, "+OK\r\n$5\r\nvalue\r\n$-1\r\n:1\r\n-ERR key not found\r\n", buf.String())
}
