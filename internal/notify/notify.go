// internal/notify/notify.go
package notify

import (
	"context"
	"time"

	"signup-orchestrator/internal/common/aws"
	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/logger"
)

// Notifier publishes an SNS message when a workflow run ends in error, so
// operations hears about critical downstream failures without log scraping.
// Publishing is best-effort and never affects the workflow outcome.
type Notifier struct {
	sns      *aws.SNSClient
	topicARN string
	logger   logger.Logger
}

func New(ctx context.Context, cfg config.AlertsConfig, log logger.Logger) (*Notifier, error) {
	client, err := aws.NewSNSClient(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		sns:      client,
		topicARN: cfg.TopicARN,
		logger:   log,
	}, nil
}

type workflowAlert struct {
	StatusTrackingID string `json:"statusTrackingId"`
	ErrorMessage     string `json:"errorMessage"`
	WorkflowPath     string `json:"workflowPath,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// AlertWorkflowError publishes a terminal-error alert for a run.
func (n *Notifier) AlertWorkflowError(ctx context.Context, trackingID, workflowPath, errorMessage string) {
	alert := workflowAlert{
		StatusTrackingID: trackingID,
		ErrorMessage:     errorMessage,
		WorkflowPath:     workflowPath,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	if err := n.sns.PublishJSON(ctx, n.topicARN, "Signup workflow failed", alert); err != nil {
		n.logger.WithError(err).Warn("Failed to publish workflow error alert", map[string]interface{}{
			"statusTrackingId": trackingID,
		})
	}
}
