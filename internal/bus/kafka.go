package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaMirror publishes activity events to a Kafka topic so external
// subscribers can follow room activity without touching the store.
type KafkaMirror struct {
	writer *kafka.Writer
	events chan Event
	done   chan struct{}
}

// NewKafkaMirror creates a mirror writing to the given brokers and topic.
// Events are queued and written by a background goroutine; a full queue
// drops events instead of blocking the kernel.
func NewKafkaMirror(brokers, topic string) *KafkaMirror {
	m := &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Publish queues an event for the background writer.
func (m *KafkaMirror) Publish(ev Event) {
	select {
	case m.events <- ev:
	default:
		slog.Debug("Kafka mirror queue full, dropping event", "kind", ev.Kind)
	}
}

func (m *KafkaMirror) run() {
	for ev := range m.events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = m.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(ev.RoomID),
			Value: payload,
			Time:  ev.Timestamp,
		})
		cancel()
		if err != nil {
			slog.Warn("Kafka mirror write failed", "topic", m.writer.Topic, "error", err)
		}
	}
	close(m.done)
}

// Close stops the background writer and flushes the connection.
func (m *KafkaMirror) Close() error {
	close(m.events)
	<-m.done
	return m.writer.Close()
}
