package config

import "github.com/urfave/cli/v3"

// Store holds persistence configuration. With no Firestore project set, the
// server falls back to the in-memory store (local runs only).
type Store struct {
	FirestoreProjectID string
}

// Flags returns CLI flags for store configuration
func (c *Store) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project of the Firestore store (in-memory store when empty)",
			Destination: &c.FirestoreProjectID,
			Sources:     cli.EnvVars("RELEASE_FIRESTORE_PROJECT_ID"),
		},
	}
}
