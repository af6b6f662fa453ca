package netserver

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ridgedb/ridgedb/internal/protocol"
	"github.com/ridgedb/ridgedb/internal/storage"
)

func newTestEngine(t *testing.T) *storage.LSM {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.DataDir = t.TempDir()
	engine, err := storage.Open(cfg, logrus.New(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	engine := newTestEngine(t)
	listener, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	srv := New(listener, engine, logrus.New())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx)
		close(done)
	}()

	return listener.Addr().String(), func() {
		cancel()
		<-done
	}
}

// readResponseLine reads one raw RESP-like response line, consuming a bulk
// string's payload line too when the first byte is '$' and the length is
// non-negative.
func readResponseLine(r *bufio.Reader) (string, error) {
	head, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(head) == 0 || head[0] != '$' {
		return head, nil
	}
	if head == "$-1\r\n" {
		return head, nil
	}
	body, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return head + body, nil
}

func TestServer_SetGetDelRoundTrip(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	enc := protocol.NewEncoder(conn)
	r := bufio.NewReader(conn)

	require.NoError(t, enc.EncodeCommand([]byte("SET"), []byte("foo"), []byte("bar")))
	line, err := readResponseLine(r)
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", line)

	require.NoError(t, enc.EncodeCommand([]byte("GET"), []byte("foo")))
	line, err = readResponseLine(r)
	require.NoError(t, err)
	require.Equal(t, "$3\r\nbar\r\n", line)

	require.NoError(t, enc.EncodeCommand([]byte("DEL"), []byte("foo")))
	line, err = readResponseLine(r)
	require.NoError(t, err)
	require.Equal(t, ":1\r\n", line)

	require.NoError(t, enc.EncodeCommand([]byte("GET"), []byte("foo")))
	line, err = readResponseLine(r)
	require.NoError(t, err)
	require.Equal(t, "$-1\r\n", line)
}

func TestServer_UnknownCommandReturnsError(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	enc := protocol.NewEncoder(conn)
	r := bufio.NewReader(conn)

	require.NoError(t, enc.EncodeCommand([]byte("FROBNICATE")))
	line, err := readResponseLine(r)
	require.NoError(t, err)
	require.Contains(t, line, "-ERR unknown command")
}
