// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "A scholarly-preprint harvester for bioRxiv search results.",
		Long: `harvester walks bioRxiv keyword search results page by page,
extracts bibliographic records, enriches each one with its posting date and
publication status, and writes the dataset to the configured store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or $HOME/.harvester/config.yaml)")

	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		os.Exit(1)
	}
}

// rootViper returns the process-wide Viper instance the commands share.
func rootViper() *viper.Viper {
	return viper.GetViper()
}
