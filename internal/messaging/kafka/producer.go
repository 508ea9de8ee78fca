package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"app/internal/usecase"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer は決済イベントをKafkaに流す。
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Entry
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // idempotentに必要

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

func (p *Producer) PublishPaymentEvent(event usecase.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		// 同じ注文のイベントは同じパーティションに載せる
		Key:       sarama.StringEncoder(event.OrderNumber),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": p.topic,
			"type":  event.Type,
			"key":   event.OrderNumber,
		}).Error("failed to send payment event")
		return fmt.Errorf("failed to send payment event: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     p.topic,
		"type":      event.Type,
		"partition": partition,
		"offset":    offset,
	}).Debug("payment event sent")

	return nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
