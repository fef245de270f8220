package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soaringjerry/Vitals/internal/services"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event to a topic, keyed by patient so a
// patient's events stay on one partition.
type KafkaPublisher struct {
	w       messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		timeout: 10 * time.Second,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev services.Event) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	key := ev.PatientID
	if key == "" {
		key = ev.Target
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
