// Package events delivers domain events to an external sink.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/soaringjerry/Vitals/internal/config"
	"github.com/soaringjerry/Vitals/internal/services"
)

// Encode renders ev as the JSON payload every sink sends.
func Encode(ev services.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.Type, err)
	}
	return b, nil
}

// LogPublisher writes events to the process log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev services.Event) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	log.Printf("event: %s", b)
	return nil
}

// Sink is a Publisher that owns resources released by Close.
type Sink interface {
	services.Publisher
	Close() error
}

type nopCloser struct{ services.Publisher }

func (nopCloser) Close() error { return nil }

// FromConfig builds the sink selected by cfg.Events. For "none" it
// returns a nil Sink; services treat a nil publisher as disabled.
func FromConfig(ctx context.Context, cfg config.Config) (Sink, error) {
	switch cfg.Events {
	case config.EventsNone:
		return nil, nil
	case config.EventsKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.EventsSQS:
		return NewSQSPublisherFromEnv(ctx, cfg.SQSQueue)
	case config.EventsLog, "":
		return nopCloser{LogPublisher{}}, nil
	}
	return nil, fmt.Errorf("unknown events sink %q", cfg.Events)
}
