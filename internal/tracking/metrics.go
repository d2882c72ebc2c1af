// Package tracking records OpenTelemetry metrics for outbound HTTP calls made by the client.
// Instruments are created lazily from the global meter provider.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "go-bricks-fetch/httpclient"

	// Per-attempt duration, following the OTel HTTP client semantic conventions.
	metricAttemptDuration = "http.client.request.duration"
	metricActiveRequests  = "http.client.active_requests"

	metricRetries         = "fetch.client.retries"
	metricOutcomes        = "fetch.client.outcomes"
	metricStreamFragments = "fetch.client.stream.fragments"
	metricUploadBytes     = "fetch.client.upload.bytes"

	attrMethod     = "http.request.method"
	attrServer     = "server.address"
	attrStatusCode = "http.response.status_code"
	attrErrorType  = "error.type"
	attrOperation  = "fetch.operation"
	attrOutcome    = "fetch.outcome"
	attrAttempt    = "fetch.attempt"
	attrAccepted   = "fetch.fragment.accepted"
)

// Operation names used as the fetch.operation attribute.
const (
	OpExecute = "execute"
	OpStream  = "stream"
	OpUpload  = "upload"
)

// OutcomeSuccess is recorded when a call returns a validated value.
const OutcomeSuccess = "success"

var (
	meter         metric.Meter
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	attemptDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	retryCounter    metric.Int64Counter
	outcomeCounter  metric.Int64Counter
	fragmentCounter metric.Int64Counter
	uploadBytes     metric.Int64Counter
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize http client metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}
	meter = otel.Meter(meterName)

	var err error
	attemptDuration, err = meter.Float64Histogram(
		metricAttemptDuration,
		metric.WithDescription("Duration of a single outbound HTTP attempt"),
		metric.WithUnit("s"),
	)
	logMetricError(metricAttemptDuration, err)

	activeRequests, err = meter.Int64UpDownCounter(
		metricActiveRequests,
		metric.WithDescription("Number of outbound HTTP attempts in flight"),
		metric.WithUnit("{request}"),
	)
	logMetricError(metricActiveRequests, err)

	retryCounter, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of scheduled retries"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	outcomeCounter, err = meter.Int64Counter(
		metricOutcomes,
		metric.WithDescription("Final outcome of client calls by error kind"),
		metric.WithUnit("{call}"),
	)
	logMetricError(metricOutcomes, err)

	fragmentCounter, err = meter.Int64Counter(
		metricStreamFragments,
		metric.WithDescription("Stream fragments seen, split by whether they passed validation"),
		metric.WithUnit("{fragment}"),
	)
	logMetricError(metricStreamFragments, err)

	uploadBytes, err = meter.Int64Counter(
		metricUploadBytes,
		metric.WithDescription("Bytes sent by multipart uploads"),
		metric.WithUnit("By"),
	)
	logMetricError(metricUploadBytes, err)

	metricsInited = true
}

func ensureMeterInitialized() {
	meterOnce.Do(initMeter)
}

// Attempt describes one finished network attempt.
type Attempt struct {
	Method   string
	Host     string
	Number   int
	Status   int
	Duration time.Duration
	// ErrorType is empty for attempts that produced a response.
	ErrorType string
}

// StartAttempt marks an attempt as in flight and returns the function that ends it.
func StartAttempt(ctx context.Context, method, host string) func(Attempt) {
	ensureMeterInitialized()

	base := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrServer, host),
	)
	if activeRequests != nil {
		activeRequests.Add(ctx, 1, base)
	}
	return func(a Attempt) {
		if activeRequests != nil {
			activeRequests.Add(ctx, -1, base)
		}
		RecordAttempt(ctx, a)
	}
}

// RecordAttempt records the duration histogram for a finished attempt.
func RecordAttempt(ctx context.Context, a Attempt) {
	ensureMeterInitialized()
	if attemptDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, a.Method),
		attribute.String(attrServer, a.Host),
		attribute.Int(attrAttempt, a.Number),
	}
	if a.Status > 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, a.Status))
	}
	if a.ErrorType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, a.ErrorType))
	}
	attemptDuration.Record(ctx, a.Duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRetry counts a scheduled retry; reason is the error kind that triggered it.
func RecordRetry(ctx context.Context, method, reason string) {
	ensureMeterInitialized()
	if retryCounter == nil {
		return
	}
	retryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrErrorType, reason),
	))
}

// RecordOutcome counts the final result of an operation. outcome is OutcomeSuccess or an error kind.
func RecordOutcome(ctx context.Context, operation, method, outcome string) {
	ensureMeterInitialized()
	if outcomeCounter == nil {
		return
	}
	outcomeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
	))
}

// RecordFragment counts a stream fragment.
func RecordFragment(ctx context.Context, accepted bool) {
	ensureMeterInitialized()
	if fragmentCounter == nil {
		return
	}
	fragmentCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool(attrAccepted, accepted)))
}

// RecordUploadBytes counts bytes written by an upload.
func RecordUploadBytes(ctx context.Context, n int64) {
	ensureMeterInitialized()
	if uploadBytes == nil || n <= 0 {
		return
	}
	uploadBytes.Add(ctx, n)
}

// IsInitialized returns true if the instruments have been created.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting drops the cached meter so the next call binds to the current global provider.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter = nil
	attemptDuration = nil
	activeRequests = nil
	retryCounter = nil
	outcomeCounter = nil
	fragmentCounter = nil
	uploadBytes = nil
	metricsInited = false
	meterOnce = sync.Once{}
}
