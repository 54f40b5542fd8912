package sink

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/httpsink/errors"
	"github.com/c360/httpsink/metric"
	"github.com/c360/httpsink/pkg/retry"
	"github.com/c360/httpsink/record"
)

// Writer is the batched HTTP delivery engine. Records are buffered until the
// configured batch size is reached, then rendered into one request body and
// delivered with per-status-code error policy and bounded retries.
//
// A writer is owned by a single caller; Write and Close must not be invoked
// concurrently. Independent writers share no state.
//
// When a flush is terminally abandoned (a fail action or the retry deadline)
// the batch is dropped and the failure is returned to the caller. It is never
// silently re-attempted on a later flush.
type Writer struct {
	cfg       Config
	schema    record.Schema
	buffer    *MessageBuffer
	urlRes    *Resolver
	policy    *PolicyTable
	scheduler retry.Scheduler
	creds     *CredentialProvider
	headers   map[string]string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
	metrics   *metric.SinkMetrics

	// targetURL is the delivery URL for the current batch. For PUT/DELETE
	// with placeholders it is re-resolved from the last written record.
	targetURL string
	closed    bool

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// Option customizes writer construction.
type Option func(*Writer)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithMetrics attaches delivery metrics.
func WithMetrics(m *metric.SinkMetrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithHTTPClient replaces the configured HTTP client. Intended for tests and
// callers that share a transport across writers.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Writer) { w.client = client }
}

// WithScheduler replaces the retry scheduler derived from the config.
func WithScheduler(s retry.Scheduler) Option {
	return func(w *Writer) { w.scheduler = s }
}

// NewWriter validates the configuration and builds a delivery engine.
// Configuration errors surface here, before any delivery attempt.
func NewWriter(cfg Config, schema record.Schema, opts ...Option) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	buffer, err := NewMessageBuffer(cfg, schema)
	if err != nil {
		return nil, err
	}

	headers, err := parseHeaders(cfg.Headers)
	if err != nil {
		return nil, err
	}

	policy, err := NewPolicyTable(cfg.ErrorHandling, cfg.DefaultAction)
	if err != nil {
		return nil, err
	}

	var urlRes *Resolver
	if cfg.Method == "PUT" || cfg.Method == "DELETE" {
		res := NewResolver(cfg.URL, true)
		if res.HasPlaceholders() {
			if len(schema.Fields) > 0 {
				for _, field := range res.Fields() {
					if !schema.HasField(field) {
						return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Writer", "NewWriter",
							fmt.Sprintf("url references field %q not declared in schema", field))
					}
				}
			}
			urlRes = res
		}
	}

	w := &Writer{
		cfg:       cfg,
		schema:    schema,
		buffer:    buffer,
		urlRes:    urlRes,
		policy:    policy,
		scheduler: schedulerFor(cfg),
		headers:   headers,
		targetURL: cfg.URL,
		logger:    slog.Default(),
		sleep:     sleepCtx,
		now:       time.Now,
	}

	if cfg.RateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.client == nil {
		client, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		w.client = client
	}

	if cfg.OAuth2.Enabled {
		w.creds = NewCredentialProvider(cfg.OAuth2, w.client)
	}

	return w, nil
}

// schedulerFor derives the retry scheduler from the configured policy.
func schedulerFor(cfg Config) retry.Scheduler {
	maxDuration := time.Duration(cfg.MaxRetryDurationSec) * time.Second
	if cfg.RetryPolicy == RetryLinear {
		return retry.Fixed{
			Interval:    time.Duration(cfg.LinearRetryIntervalSec) * time.Second,
			MaxDuration: maxDuration,
		}
	}
	return retry.Exponential{
		Base:        retry.DefaultExponentialBase,
		MaxDuration: maxDuration,
	}
}

// newHTTPClient builds the HTTP client from transport config: connect/read
// timeouts, redirect policy, optional proxy with basic auth, optional
// insecure TLS mode.
func newHTTPClient(cfg Config) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.connectTimeout(),
		}).DialContext,
		ResponseHeaderTimeout: cfg.readTimeout(),
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Writer", "newHTTPClient", "parse proxy url")
		}
		if cfg.ProxyUsername != "" {
			proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if cfg.DisableTLSValidation {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- explicit config flag
	}

	client := &http.Client{Transport: transport}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}

// sleepCtx blocks for the given duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Write buffers the record and flushes when the batch size is reached. For
// PUT and DELETE the target URL is re-resolved from this record's fields.
// GET and DELETE carry no body and deliver one request per record.
//
// A terminal delivery failure is returned to the caller; the batch it
// belonged to has been dropped.
func (w *Writer) Write(ctx context.Context, rec record.Record) error {
	if w.closed {
		return errors.WrapFatal(errors.ErrWriterClosed, "Writer", "Write", "accept record")
	}

	if w.urlRes != nil {
		w.targetURL = w.urlRes.Resolve(rec)
	}

	if w.cfg.hasBody() {
		w.buffer.Add(rec)
		if w.metrics != nil {
			w.metrics.RecordsBuffered.Inc()
		}
		if w.buffer.Size() >= w.cfg.BatchSize {
			return w.flush(ctx)
		}
		return nil
	}

	// GET/DELETE: nothing to batch, deliver immediately
	return w.flush(ctx)
}

// Close forces a final flush of any partial buffer. A terminal failure of
// that flush propagates to the caller since it represents undelivered data.
// Close is idempotent.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.buffer.IsEmpty() {
		return nil
	}
	return w.flush(ctx)
}

// flush delivers the current batch: build request, send, classify the status
// via the policy table, and loop through the retry scheduler until success,
// a fail action, or the retry deadline. The buffer is cleared on every
// terminal outcome so retries never re-add already-sent records.
func (w *Writer) flush(ctx context.Context) error {
	body, hasBody, err := w.buffer.Message()
	if err != nil {
		w.buffer.Clear()
		w.countFailure("encoding")
		return err
	}
	if w.cfg.hasBody() && !hasBody {
		return nil
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return errors.WrapTransient(err, "Writer", "flush", "rate limit wait")
		}
	}

	batchID := uuid.NewString()
	batchSize := w.buffer.Size()
	start := w.now()
	attempt := 0

	for {
		status, sendErr := w.attempt(ctx, body, batchID)
		if w.metrics != nil {
			w.metrics.SendAttempts.Inc()
		}

		action := w.policy.Resolve(status)
		logger := w.logger.With(
			slog.String("batch_id", batchID),
			slog.String("url", w.targetURL),
			slog.Int("status", status),
			slog.Int("attempt", attempt+1),
		)

		switch action {
		case ActionSuccess:
			logger.Debug("batch delivered", slog.Int("records", batchSize))
			w.buffer.Clear()
			w.countFlush("success", start)
			return nil

		case ActionFail:
			logger.Error("delivery failed, dropping batch")
			w.buffer.Clear()
			w.countFlush("failed", start)
			w.countFailure("policy")
			return errors.WrapFatal(errors.ErrDeliveryFailed, "Writer", "flush",
				fmt.Sprintf("status %d from %s %s after %d attempt(s)",
					status, w.cfg.Method, w.targetURL, attempt+1))

		case ActionRetry:
			elapsed := w.now().Sub(start)
			if w.scheduler.Exceeded(elapsed) {
				logger.Error("retry deadline exceeded, dropping batch",
					slog.Duration("elapsed", elapsed))
				w.buffer.Clear()
				w.countFlush("failed", start)
				w.countFailure("deadline")
				return errors.WrapFatal(errors.ErrRetryDeadlineExceeded, "Writer", "flush",
					fmt.Sprintf("status %d from %s %s after %d attempt(s) in %s",
						status, w.cfg.Method, w.targetURL, attempt+1, elapsed.Round(time.Millisecond)))
			}

			delay := w.scheduler.NextDelay(attempt)
			if sendErr != nil {
				logger.Warn("send attempt failed, retrying",
					slog.Duration("delay", delay), slog.String("error", sendErr.Error()))
			} else {
				logger.Warn("retryable status, retrying", slog.Duration("delay", delay))
			}
			if w.metrics != nil {
				w.metrics.Retries.Inc()
			}

			if err := w.sleep(ctx, delay); err != nil {
				return errors.WrapTransient(err, "Writer", "flush", "backoff wait")
			}
			attempt++
		}
	}
}

// attempt issues one HTTP call. A transport failure is reported as status 0
// with the underlying error; it never crashes the engine.
func (w *Writer) attempt(ctx context.Context, body, batchID string) (int, error) {
	var reader io.Reader
	if w.cfg.hasBody() && body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, w.cfg.Method, w.targetURL, reader)
	if err != nil {
		return 0, errors.WrapInvalid(err, "Writer", "attempt", "build request")
	}

	for name, value := range w.headers {
		req.Header.Set(name, value)
	}
	// User-supplied Content-Type wins
	if reader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", w.buffer.ContentType())
	}
	req.Header.Set("X-Batch-ID", batchID)

	if w.creds != nil {
		token, err := w.creds.Token(ctx)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+token.Value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, errors.WrapTransient(err, "Writer", "attempt", "send request")
	}
	defer resp.Body.Close()

	// Drain so the transport can reuse the connection
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (w *Writer) countFlush(status string, start time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.Flushes.WithLabelValues(status).Inc()
	w.metrics.FlushDuration.Observe(w.now().Sub(start).Seconds())
}

func (w *Writer) countFailure(reason string) {
	if w.metrics != nil {
		w.metrics.Failures.WithLabelValues(reason).Inc()
	}
}

// BufferedRecords returns the count of records awaiting flush.
func (w *Writer) BufferedRecords() int {
	return w.buffer.Size()
}
