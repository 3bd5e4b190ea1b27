package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gosession-server",
	Short:         "Cookie-based session service backed by Redis",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides CONFIG_PATH)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBlockIPCmd())
	rootCmd.AddCommand(newUnblockIPCmd())
	rootCmd.AddCommand(newSecurityReportCmd())
	rootCmd.AddCommand(newLoadtestCmd())
	rootCmd.AddCommand(newBenchCompareCmd())
}

// Execute runs the root command and prints the error, if any, to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}
