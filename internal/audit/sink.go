package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/deployd/internal/audit"

// Sink accepts audit events. Emit is fire-and-forget: it assigns the
// session sequence number and hands the event to a background publisher
// without blocking the caller past the configured flush timeout.
type Sink interface {
	Emit(ctx context.Context, event Event)
	Close(ctx context.Context) error
}

// Publisher abstracts the NATS connection for testability.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Service publishes audit events to a NATS-backed stream with local
// buffering and retry on sink unavailability.
type Service struct {
	cfg       config.AuditConfig
	publisher Publisher
	logger    *logging.Logger

	mu     sync.Mutex
	seqs   map[string]uint64
	closed bool

	buf  chan Event
	done chan struct{}
	wg   sync.WaitGroup

	published metric.Int64Counter
	dropped   metric.Int64Counter
	retried   metric.Int64Counter
}

// NewService creates the audit service and starts its publish loop.
func NewService(publisher Publisher, logger *logging.Logger, cfg config.AuditConfig) (*Service, error) {
	if publisher == nil {
		return nil, errors.New("audit: publisher is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}

	s := &Service{
		cfg:       cfg,
		publisher: publisher,
		logger:    logger.Named("audit"),
		seqs:      make(map[string]uint64),
		buf:       make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
	}
	s.initMetrics()

	s.wg.Add(1)
	go s.publishLoop()
	return s, nil
}

func (s *Service) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	s.published, err = meter.Int64Counter(
		"deployd.audit.events_published_total",
		metric.WithDescription("Audit events successfully published to the stream."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create published counter", zap.Error(err))
	}

	s.dropped, err = meter.Int64Counter(
		"deployd.audit.events_dropped_total",
		metric.WithDescription("Audit events dropped after the local buffer filled. Any nonzero rate means the stream is losing records."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create dropped counter", zap.Error(err))
	}

	s.retried, err = meter.Int64Counter(
		"deployd.audit.publish_retries_total",
		metric.WithDescription("Publish attempts retried after sink unavailability."),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create retried counter", zap.Error(err))
	}
}

// Emit queues the event for publishing, assigning the next sequence number
// for the event's session when the caller has not already done so (a Tee
// upstream numbers events once for all sinks). Sequence numbers are
// assigned under lock, so they are strictly increasing and gapless per
// session.
func (s *Service) Emit(ctx context.Context, event Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if event.Seq == 0 {
		s.seqs[event.SessionID]++
		event.Seq = s.seqs[event.SessionID]
	}
	s.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case s.buf <- event:
		return
	default:
	}

	// Buffer full: wait up to the flush timeout, then count the drop.
	// Never block the emitting stage indefinitely.
	timer := time.NewTimer(s.cfg.FlushTimeout.Duration())
	defer timer.Stop()
	select {
	case s.buf <- event:
	case <-timer.C:
		if s.dropped != nil {
			s.dropped.Add(ctx, 1)
		}
		s.logger.Error(ctx, "audit event dropped, buffer full",
			zap.String("session_id", event.SessionID),
			zap.Uint64("seq", event.Seq),
			zap.String("stage", event.Stage))
	}
}

func (s *Service) publishLoop() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.buf:
			s.publish(event)
		case <-s.done:
			// Drain what is left before exiting.
			for {
				select {
				case event := <-s.buf:
					s.publish(event)
				default:
					return
				}
			}
		}
	}
}

// publish delivers one event, retrying at the configured interval until the
// sink accepts it or the service shuts down. Events are never dropped here;
// only buffer overflow in Emit drops, and that is counted.
func (s *Service) publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error(context.Background(), "failed to marshal audit event",
			zap.String("session_id", event.SessionID), zap.Error(err))
		return
	}
	subject := s.subject(event)

	for {
		err := s.publisher.Publish(subject, data)
		if err == nil {
			if s.published != nil {
				s.published.Add(context.Background(), 1)
			}
			return
		}

		if s.retried != nil {
			s.retried.Add(context.Background(), 1)
		}
		s.logger.Warn(context.Background(), "audit publish failed, retrying",
			zap.String("subject", subject), zap.Error(err))

		select {
		case <-time.After(s.cfg.RetryInterval.Duration()):
		case <-s.done:
			s.logger.Error(context.Background(), "audit event unpublished at shutdown",
				zap.String("session_id", event.SessionID), zap.Uint64("seq", event.Seq))
			return
		}
	}
}

func (s *Service) subject(event Event) string {
	return fmt.Sprintf("%s.%s.%s", s.cfg.SubjectPrefix, event.SessionID, event.Status)
}

// Close stops accepting events and flushes the buffer.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit: close interrupted: %w", ctx.Err())
	}
}

var _ Sink = (*Service)(nil)
