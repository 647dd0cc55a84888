package slacknotify

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/frappe/release/pkg/domain/interfaces"
)

type notifier struct {
	client  *slack.Client
	channel string
}

// New creates a Notifier posting record-change signals to a Slack channel
func New(token, channel string) interfaces.Notifier {
	return &notifier{
		client:  slack.New(token),
		channel: channel,
	}
}

// RecordChanged posts a one-line refresh signal
func (n *notifier) RecordChanged(ctx context.Context, kind, id, message string) error {
	text := fmt.Sprintf(":arrows_counterclockwise: %s `%s`: %s", kind, id, message)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return goerr.Wrap(err, "failed to post Slack notification",
			goerr.V("channel", n.channel), goerr.V("kind", kind))
	}
	return nil
}

// Discard is a Notifier that drops every signal. Used when no Slack channel
// is configured and by tests.
type Discard struct{}

// RecordChanged does nothing
func (Discard) RecordChanged(ctx context.Context, kind, id, message string) error {
	return nil
}
