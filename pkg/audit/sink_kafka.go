package audit

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// KafkaSinkConfig configures the kafka audit sink.
type KafkaSinkConfig struct {
	Host  string `mapstructure:"host"`
	Port  string `mapstructure:"port"`
	Topic string `mapstructure:"topic"`
}

func (c KafkaSinkConfig) Validate() error {
	if c.Host == "" {
		return errors.New("kafka host is required")
	}
	if c.Port == "" {
		return errors.New("kafka port is required")
	}
	if c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return nil
}

// KafkaSink publishes audit records to a kafka topic, one JSON message
// per record, keyed by conversation so consumers see per-conversation
// order.
type KafkaSink struct {
	cfg      KafkaSinkConfig
	producer *kafka.Producer
}

func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaSink{cfg: cfg, producer: producer}, nil
}

func (s *KafkaSink) Write(rec Record) error {
	if s.producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	deliveryChan := make(chan kafka.Event)

	err = s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.cfg.Topic, Partition: kafka.PartitionAny},
		Key:            []byte(rec.ConversationID),
		Value:          data,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce audit record: %w", err)
	}
	e := <-deliveryChan
	m, ok := e.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected kafka event: %T", e)
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}
	close(deliveryChan)
	return nil
}

func (s *KafkaSink) Flush() error {
	if s.producer == nil {
		return nil
	}
	if remaining := s.producer.Flush(5000); remaining > 0 {
		return fmt.Errorf("%d audit records still in flight after flush", remaining)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	err := s.Flush()
	s.producer.Close()
	return err
}
