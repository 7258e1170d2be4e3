// Package audit ships every SystemEvent to Kafka for durable, replayable
// storage outside the bus's 1,000-entry ring buffer -- compliance and
// after-the-fact investigation need more history than an in-process
// ring can hold.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"loanwatch.io/pkg/sysevent"
)

const defaultTopic = "loan-monitor.events"

// Exporter publishes system events to a Kafka topic with an async
// producer, adapted from the teacher's kafka.Producer
// (pkg/kafka/producer.go): same ack/compression/flush knobs, same
// fire-and-log-errors discipline -- a failed export must never block
// or unwind alert processing (spec §7).
type Exporter struct {
	producer sarama.AsyncProducer
	topic    string
}

// Config mirrors the producer tunables the teacher exposes.
type Config struct {
	Brokers        []string
	Topic          string
	RequiredAcks   sarama.RequiredAcks
	Compression    sarama.CompressionCodec
	FlushFrequencyMs int
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig(brokers []string) Config {
	return Config{
		Brokers:          brokers,
		Topic:            defaultTopic,
		RequiredAcks:     sarama.WaitForLocal,
		Compression:      sarama.CompressionSnappy,
		FlushFrequencyMs: 100,
	}
}

// NewExporter builds an Exporter from cfg.
func NewExporter(cfg Config) (*Exporter, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = cfg.RequiredAcks
	saramaCfg.Producer.Compression = cfg.Compression
	saramaCfg.Producer.Flush.Frequency = time.Duration(cfg.FlushFrequencyMs) * time.Millisecond
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}

	e := &Exporter{producer: producer, topic: topic}
	go e.drainErrors()
	return e, nil
}

// Export asynchronously ships evt to the configured topic, keyed by
// event type so a single event stream stays ordered per-type within a
// Kafka partition.
func (e *Exporter) Export(evt sysevent.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	e.producer.Input() <- &sarama.ProducerMessage{
		Topic: e.topic,
		Key:   sarama.StringEncoder(evt.Type),
		Value: sarama.ByteEncoder(data),
	}
	return nil
}

func (e *Exporter) drainErrors() {
	for err := range e.producer.Errors() {
		fmt.Printf("[audit] export failed: topic=%s, err=%v\n", err.Msg.Topic, err.Err)
	}
}

// Close flushes and closes the underlying producer.
func (e *Exporter) Close() error {
	return e.producer.Close()
}
