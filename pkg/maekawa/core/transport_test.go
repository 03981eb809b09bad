package core

import (
	"testing"
	"time"

	"github.com/jabolina/maekawa/pkg/maekawa/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPTransport_RoundTrip(t *testing.T) {
	const n = 3
	const base = 17100

	transports := make([]*TCPTransport, n)
	for i := 0; i < n; i++ {
		tr, err := NewTCPTransport(types.PeerID(i), n, base, noopLogger{}, 5*time.Second)
		require.NoError(t, err)
		transports[i] = tr
	}
	defer func() {
		for _, tr := range transports {
			_ = tr.Close()
		}
	}()

	msg := types.Message{Kind: types.Request, Src: 0, Dest: 2, Ts: 7}
	require.NoError(t, transports[0].Send(msg, 2))

	select {
	case got := <-transports[2].Inbound():
		assert.Equal(t, msg, got)
	case <-time.After(2 * time.Second):
		t.Fatal("message never arrived")
	}
}

func TestTCPTransport_BackToBackMessagesArriveInOrder(t *testing.T) {
	const n = 2
	const base = 17200

	transports := make([]*TCPTransport, n)
	for i := 0; i < n; i++ {
		tr, err := NewTCPTransport(types.PeerID(i), n, base, noopLogger{}, 5*time.Second)
		require.NoError(t, err)
		transports[i] = tr
	}
	defer func() {
		for _, tr := range transports {
			_ = tr.Close()
		}
	}()

	first := types.Message{Kind: types.Request, Src: 0, Dest: 1, Ts: 1}
	second := types.Message{Kind: types.Release, Src: 0, Dest: 1, Ts: 2}

	require.NoError(t, transports[0].Send(first, 1))
	require.NoError(t, transports[0].Send(second, 1))

	var got []types.Message
	for len(got) < 2 {
		select {
		case m := <-transports[1].Inbound():
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("only received %d of 2 messages", len(got))
		}
	}

	assert.Equal(t, []types.Message{first, second}, got)
}

func TestExtractFrames_SplitsOnBraceDepth(t *testing.T) {
	a := []byte(`{"msg_type":3,"src":0,"dest":1,"ts":1,"data":null}`)
	b := []byte(`{"msg_type":2,"src":0,"dest":1,"ts":2,"data":{"ts":1,"src":0}}`)
	buf := append(append([]byte{}, a...), b...)

	frames, remainder := extractFrames(buf)
	require.Len(t, frames, 2)
	assert.Equal(t, a, frames[0])
	assert.Equal(t, b, frames[1])
	assert.Empty(t, remainder)
}

func TestExtractFrames_HoldsPartialTrailer(t *testing.T) {
	complete := []byte(`{"msg_type":5,"src":0,"dest":1,"ts":1,"data":null}`)
	partial := []byte(`{"msg_type":4,"src":0,"dest":1`)
	buf := append(append([]byte{}, complete...), partial...)

	frames, remainder := extractFrames(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, complete, frames[0])
	assert.Equal(t, partial, remainder)
}
