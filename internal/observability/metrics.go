// Package observability emits webhook-processing telemetry to CloudWatch.
// Emission is strictly best-effort: a telemetry outage must never slow down
// or fail a webhook delivery, so every publish runs through a circuit
// breaker and every error is logged and discarded.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sony/gobreaker/v2"
)

// Metric and dimension names for webhook deliveries.
const (
	MetricWebhookEvent = "WebhookEvent"
	DimEventType       = "EventType"
	DimOutcome         = "Outcome"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// EventMetrics publishes one WebhookEvent count datum per delivery, with
// EventType and Outcome dimensions.
type EventMetrics struct {
	client    CloudWatchClient
	breaker   *gobreaker.CircuitBreaker[struct{}]
	namespace string
	logger    *slog.Logger
}

// NewEventMetrics creates an EventMetrics publishing to the given namespace.
// The breaker opens after consecutive publish failures so a CloudWatch
// outage degrades to cheap short-circuited no-ops.
func NewEventMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *EventMetrics {
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "cloudwatch-metrics",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &EventMetrics{
		client:    client,
		breaker:   cb,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordEvent emits a WebhookEvent datum. Safe to call on a nil receiver,
// which makes an unconfigured recorder a no-op at every call site.
func (m *EventMetrics) RecordEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricWebhookEvent),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimEventType),
						Value: aws.String(eventType),
					},
					{
						Name:  aws.String(DimOutcome),
						Value: aws.String(outcome),
					},
				},
			},
		},
	}

	_, err := m.breaker.Execute(func() (struct{}, error) {
		_, err := m.client.PutMetricData(ctx, input)
		return struct{}{}, err
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to record webhook metric (ignored)",
			"event_type", eventType,
			"outcome", outcome,
			"error", err,
		)
	}
}
