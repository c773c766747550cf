/*
Package cli provides the command line client for the mailer server.
*/
package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Submit tracked bulk email batches",
	Long: `mailer submits recipient lists and HTML templates to a running
mailer server and reads back delivery logs and open counts.

Example:
  mailer send staff.csv welcome.html -d HR -d Finance --from me@example.com
  mailer create
  mailer logs <mailerId>
  mailer clicks <mailerId>`,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { initLogging(); return nil },
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("MAILER_SERVER", "http://localhost:8080"), "mailer server base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(clicksCmd)
	rootCmd.AddCommand(statusCmd)
}

func initLogging() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
