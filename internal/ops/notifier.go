// Package ops publishes operator-facing notices to an SQS queue. Notices are
// informational: they never gate webhook processing, and publishing is
// synchronous and best-effort (nothing is ever enqueued for processing).
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// noticeTypeCleanup identifies duplicate-subscription cleanup notices.
const noticeTypeCleanup = "subscription_cleanup"

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// CleanupNotice is the JSON body published when the janitor demotes
// duplicate ACTIVE subscriptions, so an operator can review whether the
// demotion matched a legitimate device or account transfer.
type CleanupNotice struct {
	NoticeID       string    `json:"noticeId"`
	Type           string    `json:"type"`
	KeptUserID     string    `json:"keptUserId"`
	ProductID      string    `json:"productId"`
	DemotedUserIDs []string  `json:"demotedUserIds"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// SQSNotifier publishes cleanup notices to the ops queue.
type SQSNotifier struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewSQSNotifier creates a notifier publishing to the given queue URL.
func NewSQSNotifier(client SQSSender, queueURL string, logger *slog.Logger) *SQSNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSNotifier{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

// NotifyCleanup publishes a CleanupNotice. Failures are logged and
// discarded; the demotion already happened and must not be reported as
// failed over a notification problem.
func (n *SQSNotifier) NotifyCleanup(ctx context.Context, keptUserID, productID string, demoted []string) {
	notice := CleanupNotice{
		NoticeID:       uuid.NewString(),
		Type:           noticeTypeCleanup,
		KeptUserID:     keptUserID,
		ProductID:      productID,
		DemotedUserIDs: demoted,
		OccurredAt:     n.now().UTC(),
	}

	body, err := json.Marshal(notice)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to marshal cleanup notice (ignored)",
			"error", err,
		)
		return
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"noticeType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(noticeTypeCleanup),
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish cleanup notice (ignored)",
			"queue_url", n.queueURL,
			"notice_id", notice.NoticeID,
			"error", err,
		)
		return
	}

	n.logger.InfoContext(ctx, "published cleanup notice",
		"notice_id", notice.NoticeID,
		"product_id", productID,
		"demoted_count", len(demoted),
	)
}
