// Package httpsink provides the output component that feeds NATS records
// into the batched HTTP delivery engine.
package httpsink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/httpsink/component"
	"github.com/c360/httpsink/errors"
	"github.com/c360/httpsink/metric"
	"github.com/c360/httpsink/natsclient"
	"github.com/c360/httpsink/record"
	"github.com/c360/httpsink/sink"
)

// Config holds configuration for the HTTP sink output component.
type Config struct {
	Subjects []string      `json:"subjects" yaml:"subjects"`
	Schema   record.Schema `json:"schema"   yaml:"schema"`
	Sink     sink.Config   `json:"sink"     yaml:"sink"`
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if len(c.Subjects) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"at least one input subject is required")
	}
	if len(c.Schema.Fields) > 0 {
		if err := c.Schema.Validate(); err != nil {
			return err
		}
	}
	return c.Sink.Validate()
}

// Output subscribes to NATS subjects, decodes each message as a structured
// record, and delivers it through the sink writer.
//
// NATS dispatches each subscription on its own goroutine, so access to the
// single-owner writer is serialized with a mutex.
type Output struct {
	name     string
	subjects []string
	schema   record.Schema
	client   *natsclient.Client
	logger   *slog.Logger

	writerMu sync.Mutex
	writer   *sink.Writer

	lifecycleMu sync.Mutex
	mu          sync.RWMutex
	runningFlag bool
	startTime   time.Time

	received   int64
	delivered  int64
	errorCount int64
}

// Option customizes output construction.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	metrics    *metric.SinkMetrics
	writerOpts []sink.Option
}

// WithLogger sets the structured logger for the component and its writer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics attaches delivery metrics to the writer.
func WithMetrics(m *metric.SinkMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWriterOptions passes extra options to the sink writer.
func WithWriterOptions(opts ...sink.Option) Option {
	return func(o *options) { o.writerOpts = append(o.writerOpts, opts...) }
}

// NewOutput validates the configuration and builds the component with its
// delivery writer.
func NewOutput(cfg Config, client *natsclient.Client, opts ...Option) (*Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	writerOpts := append([]sink.Option{sink.WithLogger(o.logger)}, o.writerOpts...)
	if o.metrics != nil {
		writerOpts = append(writerOpts, sink.WithMetrics(o.metrics))
	}

	writer, err := sink.NewWriter(cfg.Sink, cfg.Schema, writerOpts...)
	if err != nil {
		return nil, err
	}

	return &Output{
		name:     "httpsink-output",
		subjects: cfg.Subjects,
		schema:   cfg.Schema,
		client:   client,
		logger:   o.logger,
		writer:   writer,
	}, nil
}

// Initialize prepares the output (no-op; the writer is built in NewOutput).
func (o *Output) Initialize() error {
	return nil
}

// Start subscribes to the configured subjects and begins delivering records.
func (o *Output) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.running() {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Output", "Start", "check running state")
	}
	if o.client == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Output", "Start", "NATS client required")
	}

	for _, subject := range o.subjects {
		subject := subject
		if err := o.client.Subscribe(subject, func(data []byte) {
			o.handleMessage(ctx, subject, data)
		}); err != nil {
			return err
		}
	}

	o.mu.Lock()
	o.runningFlag = true
	o.startTime = time.Now()
	o.mu.Unlock()

	o.logger.Info("httpsink output started", slog.Any("subjects", o.subjects))
	return nil
}

// Stop drains the subscriptions, then closes the writer, forcing a final
// flush of any partial batch. A terminal failure of that flush is returned
// since it represents undelivered data.
func (o *Output) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if !o.running() {
		return nil
	}

	if o.client != nil {
		if err := o.client.Drain(); err != nil {
			o.logger.Warn("drain failed", slog.String("error", err.Error()))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	o.writerMu.Lock()
	err := o.writer.Close(ctx)
	o.writerMu.Unlock()

	o.mu.Lock()
	o.runningFlag = false
	o.mu.Unlock()

	if err != nil {
		atomic.AddInt64(&o.errorCount, 1)
		return err
	}
	o.logger.Info("httpsink output stopped")
	return nil
}

// handleMessage decodes one NATS message and hands it to the writer.
// Delivery failures are terminal for their batch; they are counted and
// logged, and processing continues with the next record.
func (o *Output) handleMessage(ctx context.Context, subject string, data []byte) {
	atomic.AddInt64(&o.received, 1)

	rec, err := record.Decode(data, o.schema)
	if err != nil {
		atomic.AddInt64(&o.errorCount, 1)
		o.logger.Warn("dropping undecodable record",
			slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}

	o.writerMu.Lock()
	err = o.writer.Write(ctx, rec)
	o.writerMu.Unlock()

	if err != nil {
		atomic.AddInt64(&o.errorCount, 1)
		o.logger.Error("delivery failed",
			slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	atomic.AddInt64(&o.delivered, 1)
}

func (o *Output) running() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runningFlag
}

// Meta returns component metadata.
func (o *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        o.name,
		Type:        "output",
		Description: "Batched HTTP delivery of structured records from NATS subjects",
		Version:     "0.1.0",
	}
}

// Health returns the current health status.
func (o *Output) Health() component.HealthStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    o.runningFlag,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&o.errorCount)),
		Uptime:     time.Since(o.startTime),
	}
}
