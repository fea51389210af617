// internal/chat/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"time"

	appconfig "chatbot-backend/internal/common/config"
	"chatbot-backend/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notifier alerts human support when a conversation needs a hand-off.
type Notifier interface {
	NotifyHandoff(ctx context.Context, sessionID, question, reason string)
}

// EscalationNotifier sends hand-off alerts by SES email and, when a phone
// target is configured, SNS SMS. Sends are fire-and-forget; a notification
// failure never blocks or alters the user-facing answer.
type EscalationNotifier struct {
	cfg       appconfig.EscalationConfig
	sesClient *ses.Client
	snsClient *sns.Client
	logger    logger.Logger
}

func NewEscalationNotifier(ctx context.Context, cfg appconfig.EscalationConfig, log logger.Logger) (*EscalationNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &EscalationNotifier{
		cfg:       cfg,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		logger:    log.With(map[string]interface{}{"component": "escalation-notifier"}),
	}, nil
}

// NotifyHandoff alerts support staff about a session that needs attention.
func (n *EscalationNotifier) NotifyHandoff(ctx context.Context, sessionID, question, reason string) {
	if !n.cfg.Enabled {
		return
	}

	subject := fmt.Sprintf("[chatbot] hand-off required: %s", reason)
	body := fmt.Sprintf(
		"Session: %s\nReason: %s\nTime: %s\n\nLast user message:\n%s\n",
		sessionID, reason, time.Now().UTC().Format(time.RFC3339), question,
	)

	if n.cfg.Email != "" {
		_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
			Source: aws.String(n.cfg.AWS.FromEmail),
			Destination: &sestypes.Destination{
				ToAddresses: []string{n.cfg.Email},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		})
		if err != nil {
			n.logger.Error("hand-off email failed", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
		}
	}

	if n.cfg.Phone != "" {
		_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(n.cfg.Phone),
			Message:     aws.String(subject + " (session " + sessionID + ")"),
		})
		if err != nil {
			n.logger.Error("hand-off sms failed", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
		}
	}
}

// NoopNotifier is used when escalation is disabled.
type NoopNotifier struct{}

func (NoopNotifier) NotifyHandoff(ctx context.Context, sessionID, question, reason string) {}
