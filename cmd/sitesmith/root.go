package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitesmith",
		Short: "SiteSmith - AI website build pipeline server",
		Long: `SiteSmith orchestrates a multi-stage AI pipeline that turns a plain-text
request into a downloadable website project.

The pipeline classifies the request, designs a feature blueprint, pauses for
human approval, generates the files, validates them with targeted retries,
and packages the result as a zip archive.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
