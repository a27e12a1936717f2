package kafkabroker

import (
	"context"
	"errors"
	"strings"

	"RTChat/logger"
	"RTChat/service/broker"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// Kafka implements broker.Broker on sarama. Kafka has no pattern
// subscriptions, so logical topics collapse onto one physical topic per
// pattern family ("ws.channel.42" -> physical "ws.channel") and the full
// logical topic rides in the message key. Each gateway consumes with its own
// group ID so every instance observes every event.
type Kafka struct {
	brokers  []string
	groupID  string
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
}

// Config for the Kafka-backed broker. GroupID must be unique per gateway
// instance.
type Config struct {
	Brokers []string
	GroupID string
}

func New(cfg Config) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers missing")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka group id missing")
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		_ = producer.Close()
		return nil, err
	}
	return &Kafka{
		brokers:  cfg.Brokers,
		groupID:  cfg.GroupID,
		producer: producer,
		group:    group,
	}, nil
}

// physicalTopic strips the instance-specific tail: "ws.channel.42" maps to
// "ws.channel", "ws.global" stays as is.
func physicalTopic(logical string) string {
	parts := strings.Split(logical, ".")
	if len(parts) > 2 {
		return strings.Join(parts[:2], ".")
	}
	return logical
}

func (k *Kafka) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: physicalTopic(topic),
		Key:   sarama.StringEncoder(topic),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (k *Kafka) Subscribe(ctx context.Context, patterns ...string) (<-chan broker.Message, error) {
	topics := make([]string, 0, len(patterns))
	for _, p := range patterns {
		topics = append(topics, physicalTopic(strings.TrimSuffix(p, ".*")))
	}

	out := make(chan broker.Message, 64)
	h := &groupHandler{ctx: ctx, out: out}

	go func() {
		defer close(out)
		for {
			if err := k.group.Consume(ctx, topics, h); err != nil {
				logger.Error("kafka consume failed", zap.Error(err))
				return
			}
			if ctx.Err() != nil {
				return
			}
			// Rebalance; Consume returns and must be called again.
		}
	}()

	logger.Info("kafka broker subscribed",
		zap.Strings("topics", topics), zap.String("group", k.groupID))
	return out, nil
}

func (k *Kafka) Close() error {
	err := k.group.Close()
	if perr := k.producer.Close(); err == nil {
		err = perr
	}
	return err
}

type groupHandler struct {
	ctx context.Context
	out chan<- broker.Message
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		logical := string(msg.Key)
		if logical == "" {
			logical = msg.Topic
		}
		select {
		case h.out <- broker.Message{Topic: logical, Payload: msg.Value}:
			sess.MarkMessage(msg, "")
		case <-h.ctx.Done():
			return nil
		}
	}
	return nil
}
