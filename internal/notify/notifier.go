// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"time"

	"stayprice/internal/common/aws"
	"stayprice/internal/common/config"
	commonerrors "stayprice/internal/common/errors"
	"stayprice/internal/common/logger"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// RunSummary is what a finished pipeline run reports.
type RunSummary struct {
	Destination  string
	ListingCount int
	DetailCount  int
	Retrained    bool
	Reason       string
	ModelVersion string
	Duration     time.Duration
	Err          error
}

// Notifier sends run summaries over the enabled channels. Each channel is
// optional; a send failure on one channel does not stop the other.
type Notifier struct {
	sesClient *aws.SESClient
	snsClient *aws.SNSClient
	cfg       config.NotificationConfig
	logger    logger.Logger
}

// NewNotifier creates the notification clients for whichever channels the
// config enables. Disabled channels cost nothing.
func NewNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	n := &Notifier{
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}

	if cfg.AWS.SES.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("create ses client: %w", err)
		}
		n.sesClient = client
	}
	if cfg.AWS.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("create sns client: %w", err)
		}
		n.snsClient = client
	}
	return n, nil
}

// NotifyRunComplete fans the summary out to every enabled channel and
// returns the first failure, if any.
func (n *Notifier) NotifyRunComplete(ctx context.Context, summary RunSummary) error {
	var firstErr error

	if n.sesClient != nil {
		if err := n.sendEmail(ctx, summary); err != nil {
			n.logger.Error("email notification failed", map[string]interface{}{"error": err.Error()})
			firstErr = err
		}
	}
	if n.snsClient != nil {
		if err := n.publishTopic(ctx, summary); err != nil {
			n.logger.Error("sns notification failed", map[string]interface{}{"error": err.Error()})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *Notifier) sendEmail(ctx context.Context, summary RunSummary) error {
	input := &ses.SendEmailInput{
		Source: awssdk.String(n.cfg.AWS.SES.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.cfg.AWS.SES.ToEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data: awssdk.String(subjectLine(summary)),
			},
			Body: &sestypes.Body{
				Text: &sestypes.Content{
					Data: awssdk.String(bodyText(summary)),
				},
			},
		},
	}

	if _, err := n.sesClient.SendEmail(ctx, input); err != nil {
		return commonerrors.NewNotificationSendFailedError("ses", err)
	}
	return nil
}

func (n *Notifier) publishTopic(ctx context.Context, summary RunSummary) error {
	input := &sns.PublishInput{
		TopicArn: awssdk.String(n.cfg.AWS.SNS.TopicARN),
		Subject:  awssdk.String(subjectLine(summary)),
		Message:  awssdk.String(bodyText(summary)),
	}

	if _, err := n.snsClient.Publish(ctx, input); err != nil {
		return commonerrors.NewNotificationSendFailedError("sns", err)
	}
	return nil
}

func subjectLine(summary RunSummary) string {
	status := "succeeded"
	if summary.Err != nil {
		status = "failed"
	}
	return fmt.Sprintf("stayprice run %s: %s", status, summary.Destination)
}

func bodyText(summary RunSummary) string {
	body := fmt.Sprintf(
		"Destination: %s\nListings: %d\nDetails: %d\nRetrained: %t\nReason: %s\nDuration: %s\n",
		summary.Destination,
		summary.ListingCount,
		summary.DetailCount,
		summary.Retrained,
		summary.Reason,
		summary.Duration.Round(time.Millisecond),
	)
	if summary.ModelVersion != "" {
		body += fmt.Sprintf("Model version: %s\n", summary.ModelVersion)
	}
	if summary.Err != nil {
		body += fmt.Sprintf("Error: %v\n", summary.Err)
	}
	return body
}
