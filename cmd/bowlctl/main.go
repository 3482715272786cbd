// Command bowlctl works with product import files from the shell: it writes
// the template, validates files offline, imports them into the catalog, and
// prints the JSON Schema of the API types.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/bowlhouse/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errInvalidRows makes validate exit non-zero without printing usage.
var errInvalidRows = errors.New("file contains invalid rows")

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "bowlctl",
		Short:         "Menu product import tool",
		Long:          "bowlctl validates and imports bowlhouse menu product files (CSV or XLSX).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if logLevel == "" {
				logLevel = os.Getenv("LOG_LEVEL")
			}
			// Logs go to stderr so stdout stays pipeable.
			logging.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL or info)")

	root.AddCommand(
		newTemplateCmd(),
		newValidateCmd(),
		newImportCmd(),
		newSchemaCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalidRows) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
