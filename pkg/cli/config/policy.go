package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/frappe/release/pkg/domain/model"
)

// Policy holds the release policy configuration: PR discovery rules and the
// version bump pattern, optionally overridden by a TOML file.
type Policy struct {
	File string
}

// Flags returns CLI flags for policy configuration
func (c *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-file",
			Usage:       "TOML file overriding the default release policy",
			Destination: &c.File,
			Sources:     cli.EnvVars("RELEASE_POLICY_FILE"),
		},
	}
}

// Load returns the effective policy: the defaults, with any file overrides
// applied on top
func (c *Policy) Load() (model.Policy, error) {
	policy := model.DefaultPolicy()
	if c.File == "" {
		return policy, nil
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return model.Policy{}, goerr.Wrap(err, "failed to read policy file",
			goerr.V("path", c.File))
	}
	if err := toml.Unmarshal(data, &policy); err != nil {
		return model.Policy{}, goerr.Wrap(err, "failed to parse policy file",
			goerr.V("path", c.File))
	}

	return policy, nil
}
