package natsbroker

import (
	"context"
	"errors"
	"strings"
	"time"

	"RTChat/logger"
	"RTChat/service/broker"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Config for the NATS-backed broker.
type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Nats implements broker.Broker on core NATS subjects. Glob patterns map
// directly onto NATS token wildcards ("ws.channel.*").
type Nats struct {
	cfg Config
	nc  *nats.Conn
}

func New(cfg Config) (*Nats, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &Nats{cfg: cfg, nc: nc}, nil
}

func (n *Nats) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.nc.Publish(topic, payload)
}

func (n *Nats) Subscribe(ctx context.Context, patterns ...string) (<-chan broker.Message, error) {
	out := make(chan broker.Message, 64)
	subs := make([]*nats.Subscription, 0, len(patterns))

	for _, p := range patterns {
		sub, err := n.nc.Subscribe(p, func(m *nats.Msg) {
			select {
			case out <- broker.Message{Topic: m.Subject, Payload: m.Data}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}

	go func() {
		<-ctx.Done()
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		close(out)
	}()

	logger.Info("nats broker subscribed", zap.Strings("subjects", patterns))
	return out, nil
}

func (n *Nats) Close() error {
	return n.nc.Drain()
}
