package queue

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"clipforge/config"
)

// Producer publishes render jobs for workers to pick up.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewProducer connects a synchronous producer to the configured brokers.
func NewProducer(cfg config.QueueConfig, logger zerolog.Logger) (*Producer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger.With().Str("component", "queue").Logger(),
	}, nil
}

// Publish enqueues one job, keyed by job id so retries of the same job
// land on the same partition.
func (p *Producer) Publish(job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(job.ID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}

	p.logger.Info().
		Str("job", job.ID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("job published")
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
