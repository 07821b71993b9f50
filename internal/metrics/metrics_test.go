package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudWatch struct {
	calls []*cloudwatch.PutMetricDataInput
	err   error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.calls = append(f.calls, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestEmitter_NilClientIsNop(t *testing.T) {
	e := Nop()
	e.Count(HandlerInvocations, 1)
	assert.Equal(t, 0, e.Pending())
	e.Flush(context.Background())

	var nilEmitter *Emitter
	nilEmitter.Count(HandlerInvocations, 1)
	nilEmitter.Flush(context.Background())
}

func TestEmitter_FlushChunks(t *testing.T) {
	client := &fakeCloudWatch{}
	e := New("real", client, nil)
	for i := 0; i < maxDatumsPerCall+5; i++ {
		e.Count(HandlerInvocations, 1, Dim("handler", "post.created"))
	}
	e.Latency(HandlerLatency, 1500*time.Millisecond)
	require.Equal(t, maxDatumsPerCall+6, e.Pending())

	e.Flush(context.Background())
	require.Len(t, client.calls, 2)
	assert.Equal(t, "real", aws.ToString(client.calls[0].Namespace))
	assert.Len(t, client.calls[0].MetricData, maxDatumsPerCall)
	last := client.calls[1].MetricData[5]
	assert.Equal(t, HandlerLatency, aws.ToString(last.MetricName))
	assert.Equal(t, 1500.0, aws.ToFloat64(last.Value))
	assert.Equal(t, 0, e.Pending())
}

func TestEmitter_FlushErrorDropsDatums(t *testing.T) {
	client := &fakeCloudWatch{err: errors.New("throttled")}
	e := New("real", client, nil)
	e.Count(EventsProcessed, 3)
	e.Flush(context.Background())
	assert.Len(t, client.calls, 1)
	assert.Equal(t, 0, e.Pending())
}
