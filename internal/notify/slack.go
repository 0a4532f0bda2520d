// Package notify announces operational events to humans. Notification
// failures are logged, never propagated.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/stratamem/stratamem/internal/model"
)

// Notifier announces quarantined uploads.
type Notifier interface {
	QuarantinedUpload(ctx context.Context, desc model.UploadDescriptor, attempts int, lastErr string)
}

// SlackNotifier posts quarantine announcements to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a notifier posting to channel with the given bot token.
func NewSlack(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

func (n *SlackNotifier) QuarantinedUpload(ctx context.Context, desc model.UploadDescriptor, attempts int, lastErr string) {
	if n == nil || n.client == nil {
		return
	}
	text := fmt.Sprintf(
		":warning: upload quarantined after %d attempts\nsystem: `%s`\nupload: `%s`\nlast error: %s",
		attempts, desc.SystemID, desc.UploadID, lastErr,
	)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		slog.Warn("slack notification failed", "upload", desc.String(), "error", err)
	}
}

// Noop discards notifications. Used when Slack is not configured.
type Noop struct{}

func (Noop) QuarantinedUpload(ctx context.Context, desc model.UploadDescriptor, attempts int, lastErr string) {
}
