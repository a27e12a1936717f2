package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoGateways builds two servers sharing one in-memory broker, as two
// instances of the fleet would share Redis.
func twoGateways(t *testing.T) (*Server, *Server) {
	t.Helper()
	brk := newMemBroker()
	a := newTestServer(t, "gw-a", nil, brk)
	b := newTestServer(t, "gw-b", nil, brk)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	return a, b
}

func TestBridgeDeliversExactlyOnce(t *testing.T) {
	a, b := twoGateways(t)
	_, wsA := attach(t, a, "u1", "alice")
	_, wsB := attach(t, b, "u2", "bob")
	a.rooms.Join("u1", "c1")
	b.rooms.Join("u2", "c1")

	a.BroadcastNewMessage("c1", map[string]any{"content": "hi"})

	waitFor(t, func() bool { return wsB.countType(EvNewMessage) == 1 })
	waitFor(t, func() bool { return wsA.countType(EvNewMessage) == 1 })
	// The broker echoes the publish back to gw-a; the origin stamp keeps it
	// from delivering twice.
	assert.Equal(t, 1, wsA.countType(EvNewMessage))
}

func TestBridgeHonorsExcludeUserRemotely(t *testing.T) {
	a, b := twoGateways(t)
	attach(t, a, "u1", "alice")
	_, wsB2 := attach(t, b, "u2", "bob")
	_, wsB3 := attach(t, b, "u3", "carol")
	a.rooms.Join("u1", "c1")
	b.rooms.Join("u2", "c1")
	b.rooms.Join("u3", "c1")

	a.BroadcastToRoom("c1", NewUserJoined("u2", "bob", "c1"), "u2")

	waitFor(t, func() bool { return wsB3.countType(EvUserJoined) == 1 })
	assert.Zero(t, wsB2.countType(EvUserJoined), "excluded user skipped on the remote instance too")
}

func TestBridgeRemoteForceDisconnect(t *testing.T) {
	a, b := twoGateways(t)
	_, wsB := attach(t, b, "u2", "bob")

	a.ForceDisconnect("u2", "banned")

	waitFor(t, func() bool { return wsB.Closed() })
	envs := wsB.envelopes(t)
	require.NotEmpty(t, envs)
	last := envs[len(envs)-1]
	assert.Equal(t, EvForceDisconnect, last.Type)
	assert.Equal(t, "banned", last.Reason)
	assert.False(t, b.IsOnline("u2"))
}

func TestBridgeRemotePersonalMessage(t *testing.T) {
	a, b := twoGateways(t)
	_, wsB := attach(t, b, "u2", "bob")

	delivered := a.SendMentionNotification("u2", map[string]any{"message_id": "m1"})
	assert.False(t, delivered, "not connected to the sending instance")
	waitFor(t, func() bool { return wsB.countType(EvMentionNotification) == 1 })
}

func TestBridgeGlobalBroadcast(t *testing.T) {
	a, b := twoGateways(t)
	_, wsA := attach(t, a, "u1", "alice")
	_, wsB := attach(t, b, "u2", "bob")

	a.BroadcastChannelCreated(map[string]any{"id": "c9", "name": "general"})

	waitFor(t, func() bool { return wsA.countType(EvChannelCreated) == 1 })
	waitFor(t, func() bool { return wsB.countType(EvChannelCreated) == 1 })
	assert.Equal(t, 1, wsA.countType(EvChannelCreated))
}

// failBroker rejects every publish; subscribe still works.
type failBroker struct{ *memBroker }

func (f *failBroker) Publish(context.Context, string, []byte) error {
	return errors.New("broker down")
}

func TestBrokerOutageDegradesToLocalDelivery(t *testing.T) {
	brk := &failBroker{memBroker: newMemBroker()}
	srv := newTestServer(t, "gw-a", nil, brk)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.Start(ctx))

	_, ws1 := attach(t, srv, "u1", "alice")
	_, ws2 := attach(t, srv, "u2", "bob")
	srv.rooms.Join("u1", "c1")
	srv.rooms.Join("u2", "c1")

	srv.BroadcastNewMessage("c1", map[string]any{"content": "hi"})

	waitFor(t, func() bool { return ws1.countType(EvNewMessage) == 1 })
	waitFor(t, func() bool { return ws2.countType(EvNewMessage) == 1 })
	assert.True(t, srv.IsOnline("u1"), "publish failure never touches liveness")
}

func TestBridgeIgnoresUndecodablePayload(t *testing.T) {
	brk := newMemBroker()
	srv := newTestServer(t, "gw-a", nil, brk)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.Start(ctx))

	_, ws := attach(t, srv, "u1", "alice")
	srv.rooms.Join("u1", "c1")

	require.NoError(t, brk.Publish(ctx, "ws.channel.c1", []byte("not json")))
	require.NoError(t, brk.Publish(ctx, "ws.channel.c1", mustEncode(t, NewNewMessage("c1", nil))))

	waitFor(t, func() bool { return ws.countType(EvNewMessage) == 1 })
}

func mustEncode(t *testing.T, env Envelope) []byte {
	t.Helper()
	env.Origin = "gw-elsewhere"
	raw, err := env.Encode()
	require.NoError(t, err)
	return raw
}
