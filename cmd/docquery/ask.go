package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yungbote/docquery-backend/internal/docquery/app"
	"github.com/yungbote/docquery-backend/internal/docquery/service"
	"github.com/yungbote/docquery-backend/internal/platform/apierr"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one query against the configured stores and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := app.NotifyContext(cmd.Context())
		defer stop()

		a, err := app.New(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer a.Close(ctx)

		resp, err := a.Service.Query(ctx, service.QueryRequest{
			Query:  strings.Join(args, " "),
			UserID: userID,
		})
		if err != nil {
			ae := apierr.From(err)
			return fmt.Errorf("%s: %w", ae.Code, err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printAnswer(cmd.OutOrStdout(), resp)
		return nil
	},
}

func printAnswer(w io.Writer, resp *service.QueryResponse) {
	heading := color.New(color.FgCyan, color.Bold).SprintFunc()
	docID := color.New(color.FgGreen, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintln(w, heading("Answer"))
	fmt.Fprintln(w, resp.Answer)
	if len(resp.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, heading("Sources"))
	for _, s := range resp.Sources {
		label := s.Subject
		if label == "" {
			label = s.FileName
		}
		line := fmt.Sprintf("  %s  score=%d", docID(s.ID), s.Score)
		if label != "" {
			line += "  " + label
		}
		if s.Truncated {
			line += "  " + faint("(truncated)")
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, "    "+faint(strings.Join(s.Matches, " ")))
	}
}

func init() {
	askCmd.Flags().String("user", "", "user whose documents are searched")
	askCmd.Flags().Bool("json", false, "print the response as JSON")
	_ = askCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(askCmd)
}
