// Package main is the entry point for the docquery server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/docquery-backend/internal/docquery/config"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "docquery",
	Short: "Answer questions over a user's stored documents",
	Long: `docquery scores a user's documents against a question, packs the best matches
into a token-budgeted prompt, and asks a hosted language model for the answer.

Run "docquery serve" for the HTTP API or "docquery ask" for a one-off query.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
			return os.Setenv("DOCQUERY_CONFIG_PATH", cfgFile)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./config/config.{yaml,json})")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before configuration")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
