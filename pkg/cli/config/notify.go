package config

import "github.com/urfave/cli/v3"

// Notify holds notification configuration. Notifications are dropped when no
// channel is configured.
type Notify struct {
	SlackToken   string
	SlackChannel string
}

// Flags returns CLI flags for notification configuration
func (c *Notify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-token",
			Usage:       "Slack bot token for record-change notifications",
			Destination: &c.SlackToken,
			Sources:     cli.EnvVars("RELEASE_SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel receiving record-change notifications",
			Destination: &c.SlackChannel,
			Sources:     cli.EnvVars("RELEASE_SLACK_CHANNEL"),
		},
	}
}
