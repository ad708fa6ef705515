package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/docquery-backend/internal/docquery/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API until SIGINT or SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			if err := os.Setenv("DOCQUERY_HTTP_ADDR", addr); err != nil {
				return err
			}
		}

		ctx, stop := app.NotifyContext(cmd.Context())
		defer stop()

		a, err := app.New(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		if err := a.Run(ctx); err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides http.addr)")
	rootCmd.AddCommand(serveCmd)
}
