// Package telemetry batches structured job log lines and ships them to
// CloudWatch Logs, the Go analogue of cloudwatch_logger.py's CloudWatchLogger:
// same batch-buffer-plus-ticker design, same sequence-token bookkeeping, same
// failed-flush requeue so a transient CloudWatch outage doesn't drop events.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/lexara-six/ingestion/internal/domain"
)

const maxBatchSize = 10_000 // CloudWatch PutLogEvents limit

// cwClient is the subset of *cloudwatchlogs.Client Sink needs, narrowed so
// tests can substitute a fake instead of a live AWS endpoint.
type cwClient interface {
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// Event is one structured log line queued for shipping.
type Event struct {
	Timestamp time.Time
	Level     string
	Message   string
	JobID     string
	WorkerID  string
	Metadata  map[string]any
}

// Sink batches Events in memory and flushes them to a single CloudWatch
// Logs stream on a ticker, matching _auto_flush_loop's fixed-interval
// flush plus the batch-size-triggered flush in log().
type Sink struct {
	client    cwClient
	logGroup  string
	logStream string
	batchSize int

	mu            sync.Mutex
	buffer        []Event
	sequenceToken *string

	bg     context.Context
	stop   chan struct{}
	stopWg sync.WaitGroup
}

// StreamName generates the worker-YYYY-MM-DD[-worker_id] stream name
// cloudwatch_logger.py's _generate_log_stream produces.
func StreamName(now time.Time, workerID string) string {
	suffix := ""
	if workerID != "" {
		suffix = "-" + workerID
	}
	return fmt.Sprintf("worker-%s%s", now.UTC().Format("2006-01-02"), suffix)
}

// NewSink constructs a Sink against logGroup/logStream, creating the stream
// if it doesn't already exist (ResourceAlreadyExistsException is not an
// error here, mirroring _create_log_stream's same tolerance).
func NewSink(ctx domain.Context, cfg aws.Config, logGroup, logStream string, batchSize int) (*Sink, error) {
	return newSink(ctx, cloudwatchlogs.NewFromConfig(cfg), logGroup, logStream, batchSize)
}

func newSink(ctx domain.Context, client cwClient, logGroup, logStream string, batchSize int) (*Sink, error) {
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = 25
	}

	_, err := client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(logStream),
	})
	if err != nil {
		var exists *types.ResourceAlreadyExistsException
		if !errors.As(err, &exists) {
			return nil, fmt.Errorf("op=telemetry.new_sink.create_log_stream: %w", err)
		}
	}

	return &Sink{
		client:    client,
		logGroup:  logGroup,
		logStream: logStream,
		batchSize: batchSize,
		bg:        context.WithoutCancel(ctx),
		stop:      make(chan struct{}),
	}, nil
}

// Start runs the background flush ticker until Close is called.
func (s *Sink) Start(flushInterval time.Duration) {
	s.stopWg.Add(1)
	go func() {
		defer s.stopWg.Done()
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Flush(); err != nil {
					slog.Warn("telemetry flush failed", "error", err)
				}
			}
		}
	}()
}

// Log queues one event, flushing immediately once the buffer reaches
// batchSize (same threshold cloudwatch_logger.py's log() checks inline).
func (s *Sink) Log(evt Event) {
	s.mu.Lock()
	s.buffer = append(s.buffer, evt)
	shouldFlush := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if shouldFlush {
		if err := s.Flush(); err != nil {
			slog.Warn("telemetry flush failed", "error", err)
		}
	}
}

// Flush ships up to batchSize buffered events to CloudWatch. A failed send
// puts the events back at the head of the buffer so the next flush retries
// them, matching _flush's extendleft(reversed(events)) behavior.
func (s *Sink) Flush() error {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	n := len(s.buffer)
	if n > s.batchSize {
		n = s.batchSize
	}
	batch := s.buffer[:n]
	remaining := s.buffer[n:]
	token := s.sequenceToken
	s.mu.Unlock()

	events := make([]types.InputLogEvent, 0, len(batch))
	for _, evt := range batch {
		body, err := json.Marshal(wireEvent(evt, s.logStream))
		if err != nil {
			return fmt.Errorf("op=telemetry.flush.marshal: %w", err)
		}
		events = append(events, types.InputLogEvent{
			Timestamp: aws.Int64(evt.Timestamp.UnixMilli()),
			Message:   aws.String(string(body)),
		})
	}

	nextToken, err := s.putLogEvents(events, token)
	if err != nil {
		s.mu.Lock()
		s.buffer = append(append([]Event{}, batch...), remaining...)
		s.mu.Unlock()
		return fmt.Errorf("op=telemetry.flush.put_log_events: %w", err)
	}

	s.mu.Lock()
	s.buffer = remaining
	s.sequenceToken = nextToken
	s.mu.Unlock()
	return nil
}

func (s *Sink) putLogEvents(events []types.InputLogEvent, token *string) (*string, error) {
	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.logGroup),
		LogStreamName: aws.String(s.logStream),
		LogEvents:     events,
		SequenceToken: token,
	}
	out, err := s.client.PutLogEvents(s.bg, input)
	if err != nil {
		var invalid *types.InvalidSequenceTokenException
		if errors.As(err, &invalid) {
			// Sequence token out of sync: retry once with the token the
			// service reports as expected, same recovery as _flush's
			// InvalidSequenceTokenException branch.
			input.SequenceToken = invalid.ExpectedSequenceToken
			out, err = s.client.PutLogEvents(s.bg, input)
			if err != nil {
				return nil, err
			}
			return out.NextSequenceToken, nil
		}
		return nil, err
	}
	return out.NextSequenceToken, nil
}

// Close stops the flush ticker and drains any remaining buffered events.
func (s *Sink) Close() error {
	close(s.stop)
	s.stopWg.Wait()
	return s.Flush()
}

func wireEvent(evt Event, stream string) map[string]any {
	v := map[string]any{
		"timestamp":  evt.Timestamp.UTC().Format(time.RFC3339Nano),
		"level":      evt.Level,
		"message":    evt.Message,
		"log_stream": stream,
	}
	if evt.JobID != "" {
		v["job_id"] = evt.JobID
	}
	if evt.WorkerID != "" {
		v["worker_id"] = evt.WorkerID
	}
	if len(evt.Metadata) > 0 {
		v["metadata"] = evt.Metadata
	}
	return v
}
