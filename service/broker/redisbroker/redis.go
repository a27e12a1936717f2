package redisbroker

import (
	"context"
	"time"

	"RTChat/logger"
	"RTChat/service/broker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config mirrors the gateway's Redis settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Redis implements broker.Broker over PUBLISH / PSUBSCRIBE.
type Redis struct {
	client *redis.Client
}

func New(c Config) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{client: rdb}, nil
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	return r.client.Publish(ctx, topic, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, patterns ...string) (<-chan broker.Message, error) {
	ps := r.client.PSubscribe(ctx, patterns...)
	// Force the subscription onto the wire before we report success.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan broker.Message, 64)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					logger.Warn("redis subscription channel closed")
					return
				}
				select {
				case out <- broker.Message{Topic: m.Channel, Payload: []byte(m.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	logger.Info("redis broker subscribed", zap.Strings("patterns", patterns))
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
