// Package cmd provides the CLI commands for the academia server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "academia",
	Short: "Academia - tutoring marketplace server",
	Long: `Academia serves the course catalog, mentor booking flow and the admin
console behind a role based gate.

Configuration:
  Config is loaded from academia.yaml in the current directory or
  /etc/academia/.

  Environment variables can override config values with the ACADEMIA_ prefix.
  Example: ACADEMIA_SERVER_ADDR=0.0.0.0:9090

Commands:
  serve       Start the HTTP server
  migrate     Apply or roll back database migrations
  seed        Load profiles, mentors and courses from a fixtures file
  grant-role  Change the role stored in a user profile
  config      Print the effective configuration
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./academia.yaml)")
}
