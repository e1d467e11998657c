// Package cli implements the mdactl command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/automated-mda/backend/internal/client"
	"github.com/automated-mda/backend/internal/flow"
	"github.com/automated-mda/backend/internal/logging"
	"github.com/automated-mda/backend/internal/theme"
)

var (
	serverURL string
	logLevel  string

	// swapped in tests
	newClient = client.New
	sleeper   = flow.Sleep
	styles    = theme.Default().Terminal()
)

var rootCmd = &cobra.Command{
	Use:   "mdactl",
	Short: "Generate MD&A narratives from financial statements",
	Long: `mdactl uploads financial statement extracts (CSV or XLSX) to an
Automated MD&A server, follows processing, and prints the resulting
KPIs and MD&A sections.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logging.SetupWriter(cmd.ErrOrStderr(), logLevel, true)
	},
}

func init() {
	defaultServer := os.Getenv("MDA_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer, "server base URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
