package cmd

import (
	"fmt"

	"github.com/goliatone/academia/config"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and ACADEMIA_
environment overrides are applied. Secrets are omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(cfg))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
