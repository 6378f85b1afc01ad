package main

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tutaexport/tutaexport"
	"github.com/tutaexport/tutaexport/internal/cli"
)

var (
	flagUsername  string
	flagPassword  string
	flagVerbosity int

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tutaexport",
	Short: "Export mail from an end-to-end encrypted mailbox to local .eml files",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.LoadDotEnv(); err != nil {
			return err
		}
		logger = cli.NewLogger(flagVerbosity)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagUsername, "username", "", "account mail address (or "+cli.EnvUsername+")")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "account password (or "+cli.EnvPassword+")")
	rootCmd.PersistentFlags().CountVarP(&flagVerbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
}

// newClient resolves credentials and signs in, the shared first step
// of every subcommand.
func newClient(cmd *cobra.Command) (*tutaexport.Client, error) {
	creds, err := cli.ResolveCredentials(flagUsername, flagPassword)
	if err != nil {
		return nil, err
	}
	return tutaexport.New(cmd.Context(), creds.Username, creds.Password, tutaexport.WithLogger(logger))
}

// partialExportError signals "ran to completion but some mails
// failed", cobra's RunE error path for spec.md §6's exit code 2 —
// distinct from a fatal error (exit 1) or cancellation (exit 3).
type partialExportError struct {
	summary tutaexport.ExportSummary
}

func (e *partialExportError) Error() string {
	return "export completed with failures; see WARN lines above"
}

// exitCodeFor maps a RunE error to the process exit code spec.md §6
// specifies: 1 for a fatal configuration/auth/I/O error, 2 for a
// completed-with-failures export, 3 for cancellation.
func exitCodeFor(err error) int {
	var partial *partialExportError
	switch {
	case errors.Is(err, tutaexport.ErrCancelled):
		return 3
	case errors.As(err, &partial):
		return 2
	default:
		return 1
	}
}
