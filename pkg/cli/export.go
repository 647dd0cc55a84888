package cli

import (
	"context"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/frappe/release/pkg/cli/config"
	"github.com/frappe/release/pkg/domain/model"
	githubinfra "github.com/frappe/release/pkg/infra/github"
	"github.com/frappe/release/pkg/infra/memory"
	"github.com/frappe/release/pkg/infra/slacknotify"
	"github.com/frappe/release/pkg/usecase"
)

func cmdExport() *cli.Command {
	var (
		githubCfg config.GitHub
		policyCfg config.Policy

		gitURL     string
		stable     string
		preRelease string
		format     string
		outDir     string
	)

	flags := append(githubCfg.Flags(), policyCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "git-url",
			Usage:       "Repository URL, e.g. https://github.com/frappe/frappe",
			Required:    true,
			Destination: &gitURL,
		},
		&cli.StringFlag{
			Name:        "stable-branch",
			Usage:       "Stable branch name",
			Required:    true,
			Destination: &stable,
		},
		&cli.StringFlag{
			Name:        "pre-release-branch",
			Usage:       "Pre-release branch name",
			Required:    true,
			Destination: &preRelease,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Output format (md or csv)",
			Value:       "md",
			Destination: &format,
		},
		&cli.StringFlag{
			Name:        "out-dir",
			Usage:       "Directory receiving the export file",
			Value:       ".",
			Destination: &outDir,
		},
	)

	return &cli.Command{
		Name:    "export",
		Aliases: []string{"e"},
		Usage:   "Export the pending release notes of a branch pair to a file",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			policy, err := policyCfg.Load()
			if err != nil {
				return err
			}

			repo := memory.New()
			backend := githubinfra.NewClient(githubCfg.Token)
			uc := usecase.NewRelease(backend, repo.Releases(), repo.PullRequests(),
				slacknotify.Discard{}, policy)

			rel, err := uc.Create(ctx, gitURL, stable, preRelease, model.ReleaseTypePatch)
			if err != nil {
				return err
			}

			notesFormat := model.NotesMarkdown
			if format == string(model.NotesCSV) {
				notesFormat = model.NotesCSV
			}

			color.Cyan("Collecting pull requests for %s (%s...%s)", gitURL, stable, preRelease)

			path, err := uc.ExportNotes(ctx, rel.ID, notesFormat, outDir)
			if err != nil {
				return err
			}

			color.Green("Saved: %s", path)
			logger.Info("Exported release notes", "path", path)
			return nil
		},
	}
}
