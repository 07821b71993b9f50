// Package metrics buffers CloudWatch datums and publishes them in batches.
// An Emitter without a client drops everything.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// maxDatumsPerCall is the PutMetricData limit.
const maxDatumsPerCall = 1000

// Standard metric names.
const (
	HandlerInvocations = "HandlerInvocations"
	HandlerFailures    = "HandlerFailures"
	HandlerLatency     = "HandlerLatency"
	EventsProcessed    = "EventsProcessed"
	EventsSkipped      = "EventsSkipped"
	ForcedRemovals     = "ForcedRemovals"
	FlagAlerts         = "FlagAlerts"
	TrendingDeleted    = "TrendingDeleted"
)

// PutMetricDataAPI is the subset of the CloudWatch client used here.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Emitter collects datums until Flush.
type Emitter struct {
	namespace string
	client    PutMetricDataAPI
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []types.MetricDatum
}

// New returns an Emitter. A nil client yields a no-op emitter.
func New(namespace string, client PutMetricDataAPI, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{namespace: namespace, client: client, logger: logger, now: time.Now}
}

// Nop returns an emitter that records nothing.
func Nop() *Emitter {
	return New("", nil, nil)
}

// Dim builds a metric dimension.
func Dim(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// Count records n occurrences.
func (e *Emitter) Count(name string, n float64, dims ...types.Dimension) {
	e.record(name, n, types.StandardUnitCount, dims)
}

// Latency records a duration in milliseconds.
func (e *Emitter) Latency(name string, d time.Duration, dims ...types.Dimension) {
	e.record(name, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dims)
}

func (e *Emitter) record(name string, v float64, unit types.StandardUnit, dims []types.Dimension) {
	if e == nil || e.client == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Value:      aws.Float64(v),
		Unit:       unit,
		Timestamp:  aws.Time(e.now()),
	})
}

// Pending returns the number of buffered datums.
func (e *Emitter) Pending() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Flush publishes buffered datums. Publishing failures are logged and the
// datums dropped; metrics never fail the caller.
func (e *Emitter) Flush(ctx context.Context) {
	if e == nil || e.client == nil {
		return
	}
	e.mu.Lock()
	datums := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, chunk := range lo.Chunk(datums, maxDatumsPerCall) {
		_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(e.namespace),
			MetricData: chunk,
		})
		if err != nil {
			e.logger.Warn("failed to send metrics", zap.Int("datums", len(chunk)), zap.Error(err))
		}
	}
}
