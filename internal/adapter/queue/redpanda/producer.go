// Package redpanda publishes best-effort job lifecycle events to
// Redpanda/Kafka for downstream dashboards and alerting. Unlike the
// exactly-once evaluation pipeline this module was distilled from, job
// events are advisory: a publish failure never blocks or fails the job
// submission that triggered it, so the producer here is a plain
// (non-transactional) franz-go client rather than a transactional one.
package redpanda

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/lexara-six/ingestion/internal/domain"
)

// TopicJobEvents is the Kafka topic job lifecycle events are published to.
const TopicJobEvents = "ingestion-job-events"

// jobEvent is the wire shape published for every job lifecycle transition.
type jobEvent struct {
	JobID     string    `json:"job_id"`
	JobType   string    `json:"job_type"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Producer publishes job events and implements httpserver.JobEventPublisher.
type Producer struct {
	client *kgo.Client
}

// NewProducer builds a client for the given brokers; it does not create the
// job-events topic. It does not use a transactional ID: these are
// at-least-once, best-effort notifications, not exactly-once side effects.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w: no seed brokers", domain.ErrInvalidArgument)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w", err)
	}
	// Relies on the broker's auto.create.topics.enable rather than an
	// explicit admin-API topic creation call.
	return &Producer{client: client}, nil
}

// PublishJobSubmitted emits a job-submitted event.
func (p *Producer) PublishJobSubmitted(ctx domain.Context, jobID, jobType string) error {
	return p.publish(ctx, jobEvent{JobID: jobID, JobType: jobType, EventType: "submitted", Timestamp: time.Now().UTC()})
}

// PublishJobCompleted emits a job-completed event.
func (p *Producer) PublishJobCompleted(ctx domain.Context, jobID, jobType string) error {
	return p.publish(ctx, jobEvent{JobID: jobID, JobType: jobType, EventType: "completed", Timestamp: time.Now().UTC()})
}

// PublishJobFailed emits a job-failed event.
func (p *Producer) PublishJobFailed(ctx domain.Context, jobID, jobType string) error {
	return p.publish(ctx, jobEvent{JobID: jobID, JobType: jobType, EventType: "failed", Timestamp: time.Now().UTC()})
}

func (p *Producer) publish(ctx domain.Context, evt jobEvent) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("op=redpanda.publish: marshal: %w", err)
	}
	record := &kgo.Record{Topic: TopicJobEvents, Key: []byte(evt.JobID), Value: b}
	res := p.client.ProduceSync(ctx, record)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("op=redpanda.publish: %w", err)
	}
	return nil
}

// Close releases the underlying Kafka client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
