package logkv

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4lexvav/logkv/internal/protocol"
	"github.com/4lexvav/logkv/pkg/kv"
)

// fakeServer answers every request on one connection with the status and
// payload chosen by respond, or hangs forever when respond is nil.
func fakeServer(t *testing.T, respond func(req *protocol.Request) (byte, string)) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		ln.Close()
	})

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			req, err := protocol.DecodeRequest(conn)
			if err != nil {
				return
			}
			if respond == nil {
				select {}
			}
			status, payload := respond(req)
			frame, err := protocol.EncodeResponse(status, payload)
			if err != nil {
				return
			}
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func connect(t *testing.T, port int, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{WithPort(port), WithDialTimeout(time.Second)}, opts...)
	client, err := Connect(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func TestGetHit(t *testing.T) {
	port := fakeServer(t, func(req *protocol.Request) (byte, string) {
		assert.Equal(t, protocol.OpGet, req.Op)
		assert.Equal(t, "answer", req.Key)
		return protocol.StatusValue, "42"
	})
	client := connect(t, port)

	value, found, err := client.Get("answer")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "42", value)
}

func TestGetMiss(t *testing.T) {
	port := fakeServer(t, func(req *protocol.Request) (byte, string) {
		return protocol.StatusOK, ""
	})
	client := connect(t, port)

	_, found, err := client.Get("absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetSendsKeyAndValue(t *testing.T) {
	port := fakeServer(t, func(req *protocol.Request) (byte, string) {
		assert.Equal(t, protocol.OpSet, req.Op)
		assert.Equal(t, "k", req.Key)
		assert.Equal(t, "v", req.Value)
		return protocol.StatusOK, ""
	})
	client := connect(t, port)

	assert.NoError(t, client.Set("k", "v"))
}

func TestRemoveNotFoundMapsToSentinel(t *testing.T) {
	port := fakeServer(t, func(req *protocol.Request) (byte, string) {
		return protocol.StatusErr, kv.ErrKeyNotFound.Error()
	})
	client := connect(t, port)

	assert.ErrorIs(t, client.Remove("absent"), kv.ErrKeyNotFound)
}

func TestServerErrorIsSurfaced(t *testing.T) {
	port := fakeServer(t, func(req *protocol.Request) (byte, string) {
		return protocol.StatusErr, "segment read failed"
	})
	client := connect(t, port)

	err := client.Set("k", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment read failed")
	assert.NotErrorIs(t, err, kv.ErrKeyNotFound)
}

func TestReadTimeout(t *testing.T) {
	port := fakeServer(t, nil)
	client := connect(t, port, WithReadTimeout(100*time.Millisecond))

	_, _, err := client.Get("slow")
	assert.Error(t, err)
}
