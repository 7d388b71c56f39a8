package blip

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedPair(t *testing.T) (*Connection, *Connection) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	connA := NewConnection(a)
	connB := NewConnection(b)
	connA.Start()
	connB.Start()
	t.Cleanup(func() { connA.Close(); connB.Close() })
	return connA, connB
}

func TestRequestResponseRoundTrip(t *testing.T) {
	client, server := connectedPair(t)

	server.HandleProfile("echo", func(req *Message) *Message {
		return NewResponse(nil, req.Body)
	})

	req := NewRequest("echo", map[string]string{"k": "v"}, []byte("hello"))
	resp, derr := client.SendRequest(req)
	require.NoError(t, derr, "SendRequest()")
	assert.Equal(t, "hello", string(resp.Body))
	assert.True(t, resp.IsResponse(), "expected response flag set")
}

func TestUnknownProfileReturnsError(t *testing.T) {
	client, _ := connectedPair(t)

	req := NewRequest("nosuchprofile", nil, nil)
	resp, derr := client.SendRequest(req)
	require.NoError(t, derr, "SendRequest()")
	assert.True(t, resp.IsError(), "expected an error response, got flags %v", resp.Flags)
}

func TestNoReplyRequestGetsNoResponse(t *testing.T) {
	client, server := connectedPair(t)

	handled := make(chan struct{}, 1)
	server.HandleProfile("fireAndForget", func(req *Message) *Message {
		handled <- struct{}{}
		return NewResponse(nil, []byte("should never be sent"))
	})

	req := NewRequest("fireAndForget", nil, []byte("x"))
	req.Flags |= NoReply
	resp, derr := client.SendRequest(req)
	require.NoError(t, derr, "SendRequest()")
	assert.Nil(t, resp, "expected nil response for NoReply request")

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestLargeBodySplitsAcrossFramesAndReassembles(t *testing.T) {
	client, server := connectedPair(t)

	body := make([]byte, frameMaxBody*3+500)
	for i := range body {
		body[i] = byte(i)
	}

	server.HandleProfile("echo", func(req *Message) *Message {
		return NewResponse(nil, req.Body)
	})

	resp, derr := client.SendRequest(NewRequest("echo", nil, body))
	require.NoError(t, derr, "SendRequest()")
	require.Equal(t, len(body), len(resp.Body), "response body length")
	assert.Equal(t, body, resp.Body)
}

func TestCompressedBodyRoundTrips(t *testing.T) {
	client, server := connectedPair(t)

	server.HandleProfile("echo", func(req *Message) *Message {
		resp := NewResponse(nil, req.Body)
		resp.Flags |= Compressed
		return resp
	})

	req := NewRequest("echo", nil, []byte("compress me compress me compress me"))
	req.Flags |= Compressed
	resp, derr := client.SendRequest(req)
	require.NoError(t, derr, "SendRequest()")
	assert.Equal(t, "compress me compress me compress me", string(resp.Body))
}

func TestPropertiesRoundTrip(t *testing.T) {
	props := map[string]string{"Profile": "test", "since": "42"}
	blob := encodeProperties(props)
	decoded, err := decodeProperties(blob)
	require.NoError(t, err)
	for k, v := range props {
		assert.Equal(t, v, decoded[k], "decoded[%q]", k)
	}
}
