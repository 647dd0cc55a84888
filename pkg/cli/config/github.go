package config

import "github.com/urfave/cli/v3"

// GitHub holds GitHub configuration. The token is an opaque secret: it is
// handed to the API client and never persisted or logged.
type GitHub struct {
	Token string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub API token",
			Required:    true,
			Destination: &c.Token,
			Sources:     cli.EnvVars("RELEASE_GITHUB_TOKEN"),
		},
	}
}
