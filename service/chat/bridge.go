package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"RTChat/logger"
	"RTChat/service/broker"
	"RTChat/tools/safe"

	"go.uber.org/zap"
)

// Bridge replicates events across gateway instances through the shared
// broker. Delivery path: the originating gateway delivers to its local
// connections at broadcast time and stamps every published payload with its
// own origin ID; the subscription side drops self-originated payloads, so a
// given envelope reaches each local recipient exactly once. A broker outage
// degrades fan-out to local-only delivery and never touches connection
// liveness.
type Bridge struct {
	brk     broker.Broker
	prefix  string
	origin  string
	timeout time.Duration
	srv     *Server

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newBridge(brk broker.Broker, prefix, origin string, timeout time.Duration, srv *Server) *Bridge {
	if prefix == "" {
		prefix = "ws"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Bridge{brk: brk, prefix: prefix, origin: origin, timeout: timeout, srv: srv}
}

func (b *Bridge) channelTopic(channelID string) string { return b.prefix + ".channel." + channelID }
func (b *Bridge) userTopic(userID string) string       { return b.prefix + ".user." + userID }
func (b *Bridge) globalTopic() string                  { return b.prefix + ".global" }

// publish pushes one payload to the broker; a failure is logged and
// swallowed so fan-out degrades to local-only delivery.
func (b *Bridge) publish(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.brk.Publish(ctx, topic, payload); err != nil {
		logger.Warn("bridge publish failed, local-only delivery",
			zap.String("topic", topic), zap.Error(err))
	}
}

// Start subscribes to the channel, user and global topic patterns and runs
// the listener until ctx is canceled or the broker fails fatally.
func (b *Bridge) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	msgs, err := b.brk.Subscribe(runCtx,
		b.prefix+".channel.*",
		b.prefix+".user.*",
		b.globalTopic(),
	)
	if err != nil {
		cancel()
		return err
	}
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.listen(runCtx, msgs)
	return nil
}

// Stop cancels the listener cooperatively; it never blocks teardown for
// more than a moment.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel == nil {
			return
		}
		b.cancel()
		select {
		case <-b.done:
		case <-time.After(2 * time.Second):
			logger.Warn("bridge listener did not stop in time")
		}
	})
}

func (b *Bridge) listen(ctx context.Context, msgs <-chan broker.Message) {
	defer close(b.done)
	for m := range msgs {
		b.handle(m)
	}
	if ctx.Err() != nil {
		logger.Info("bridge listener stopped")
		return
	}
	// Fatal broker error: log and terminate, no auto-retry here.
	logger.Error("bridge subscription terminated, cross-instance fan-out disabled")
}

// bridgeMeta is the slice of the envelope the listener needs for routing.
type bridgeMeta struct {
	Type        string `json:"type"`
	Origin      string `json:"origin"`
	ExcludeUser string `json:"exclude_user"`
	Reason      string `json:"reason"`
}

func (b *Bridge) handle(m broker.Message) {
	defer safe.Recover("bridge.handle")

	var meta bridgeMeta
	if err := json.Unmarshal(m.Payload, &meta); err != nil {
		logger.Warn("bridge payload not decodable",
			zap.String("topic", m.Topic), zap.Error(err))
		return
	}
	if meta.Origin != "" && meta.Origin == b.origin {
		// Our own broadcast echoed back; already delivered locally.
		return
	}

	switch {
	case strings.HasPrefix(m.Topic, b.prefix+".channel."):
		channelID := strings.TrimPrefix(m.Topic, b.prefix+".channel.")
		b.srv.deliverToRoom(channelID, m.Payload, meta.ExcludeUser)
	case strings.HasPrefix(m.Topic, b.prefix+".user."):
		userID := strings.TrimPrefix(m.Topic, b.prefix+".user.")
		b.srv.deliverToUser(userID, m.Payload)
		if meta.Type == EvForceDisconnect {
			// Reason envelope first, then the close frame.
			b.srv.forceDisconnectLocal(userID, meta.Reason)
		}
	case m.Topic == b.globalTopic():
		b.srv.deliverToAll(m.Payload)
	default:
		logger.Warn("bridge message on unexpected topic", zap.String("topic", m.Topic))
	}
}
