// Package events publishes an audit/integration event stream of station
// lifecycle and transaction events to Kafka via IBM/sarama. Grounded on the
// teacher gateway's internal/message/kafka_producer.go, repurposed from
// cross-pod command routing (which conflicts with this system's
// single-process Non-goal) to an outbound audit stream consumed by systems
// outside this process (billing, analytics) — the dependency's role
// changes, it is not dropped.
package events

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocpp-central/central-system/internal/metrics"
)

// Type names the kind of lifecycle event published.
type Type string

const (
	TypeStationBooted        Type = "station.booted"
	TypeStationStatusChanged Type = "station.status_changed"
	TypeTransactionStarted   Type = "transaction.started"
	TypeTransactionStopped   Type = "transaction.stopped"
)

// Event is the wire shape published to Kafka.
type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	StationID string      `json:"station_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Publisher wraps a sarama.AsyncProducer, grounded on the teacher's
// NewKafkaProducer (WaitForLocal acks, Snappy compression, partition
// affinity keyed by station id).
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      zerolog.Logger
}

// NewPublisher dials brokers and returns a Publisher for topic.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	p := &Publisher{producer: producer, topic: topic, log: log.With().Str("component", "event_publisher").Logger()}
	go p.drainSuccesses()
	go p.drainErrors()
	return p, nil
}

// Publish sends ev asynchronously, partitioned by station id so all events
// for one station stay ordered within a partition.
func (p *Publisher) Publish(ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic:    p.topic,
		Key:      sarama.StringEncoder(ev.StationID),
		Value:    sarama.ByteEncoder(raw),
		Metadata: ev.Type,
	}
}

// NewEvent stamps a new Event with a generated id and current timestamp.
func NewEvent(t Type, stationID string, payload interface{}) Event {
	return Event{ID: uuid.New().String(), Type: t, StationID: stationID, Timestamp: time.Now().UTC(), Payload: payload}
}

func (p *Publisher) drainSuccesses() {
	for msg := range p.producer.Successes() {
		evType, _ := msg.Metadata.(Type)
		metrics.EventsPublished.WithLabelValues(string(evType)).Inc()
	}
}

func (p *Publisher) drainErrors() {
	for err := range p.producer.Errors() {
		p.log.Error().Err(err.Err).Msg("event publish failed")
	}
}

// Close shuts the producer down, flushing in-flight messages.
func (p *Publisher) Close() error { return p.producer.Close() }
