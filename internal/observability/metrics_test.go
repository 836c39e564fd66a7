package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCWClient captures PutMetricData calls and optionally fails.
type fakeCWClient struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCWClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventMetrics_RecordEvent(t *testing.T) {
	client := &fakeCWClient{}
	m := NewEventMetrics(client, "Nourish", discardLogger())

	m.RecordEvent(context.Background(), "RENEWAL", "success")

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "Nourish", *input.Namespace)
	require.Len(t, input.MetricData, 1)

	datum := input.MetricData[0]
	assert.Equal(t, MetricWebhookEvent, *datum.MetricName)
	assert.Equal(t, float64(1), *datum.Value)
	require.Len(t, datum.Dimensions, 2)
	assert.Equal(t, DimEventType, *datum.Dimensions[0].Name)
	assert.Equal(t, "RENEWAL", *datum.Dimensions[0].Value)
	assert.Equal(t, DimOutcome, *datum.Dimensions[1].Name)
	assert.Equal(t, "success", *datum.Dimensions[1].Value)
}

func TestEventMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *EventMetrics
	assert.NotPanics(t, func() {
		m.RecordEvent(context.Background(), "RENEWAL", "success")
	})
}

func TestEventMetrics_PublishFailureIsSwallowed(t *testing.T) {
	client := &fakeCWClient{err: errors.New("throttled")}
	m := NewEventMetrics(client, "Nourish", discardLogger())

	assert.NotPanics(t, func() {
		m.RecordEvent(context.Background(), "RENEWAL", "success")
	})
}

func TestEventMetrics_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := &fakeCWClient{err: errors.New("throttled")}
	m := NewEventMetrics(client, "Nourish", discardLogger())

	for i := 0; i < 10; i++ {
		m.RecordEvent(context.Background(), "RENEWAL", "success")
	}

	// Once open, calls short-circuit without reaching the client; a
	// recovered client sees no traffic until the breaker half-opens.
	client.err = nil
	m.RecordEvent(context.Background(), "RENEWAL", "success")
	assert.Empty(t, client.inputs)
}
