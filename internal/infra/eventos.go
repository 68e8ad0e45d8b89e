package infra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventoCompraRegistrada = "compra.registrada"
	EventoCostosAplicados  = "compra.costos_aplicados"
)

// Evento is a domain event published after a purchase transaction commits.
type Evento struct {
	Tipo      string      `json:"tipo"`
	EmpresaID string      `json:"empresa_id"`
	CompraID  string      `json:"compra_id"`
	Fecha     time.Time   `json:"fecha"`
	Datos     interface{} `json:"datos,omitempty"`
}

// EventPublisher delivers domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, e Evento) error
	Close() error
}

// NewEventPublisher returns a Kafka publisher, or a no-op one when no broker
// is configured.
func NewEventPublisher(brokers []string, topic string) EventPublisher {
	if len(brokers) == 0 {
		log.Info().Msg("events: KAFKA_BROKERS empty, publishing disabled")
		return NopPublisher{}
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("events: kafka producer configured")
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same purchase, same partition
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(msgs)).Msg("events: kafka delivery failed")
			}
		},
	}}
}

// KafkaPublisher writes events keyed by purchase ID.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Evento) error {
	if e.Fecha.IsZero() {
		e.Fecha = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(e.CompraID),
		Value:   data,
		Headers: []kafka.Header{{Key: "tipo", Value: []byte(e.Tipo)}},
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, e Evento) error {
	log.Debug().Str("tipo", e.Tipo).Str("compra_id", e.CompraID).Msg("events: dropped (publishing disabled)")
	return nil
}

func (NopPublisher) Close() error { return nil }
