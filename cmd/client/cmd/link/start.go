package link

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a link session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		token, expiry, err := app.CreateLinkSession(ctx)
		if err != nil {
			return fmt.Errorf("start link session: %w", err)
		}

		fmt.Println("Link session created.")
		fmt.Printf("Session token: %s\n", token)
		fmt.Printf("Expires at:    %s\n", expiry.Format(time.RFC3339))
		fmt.Println()
		fmt.Println("Complete the institution login in the aggregator UI, then run:")
		color.Cyan("  bankfeed link complete --public-token <token> --institution <name>")
		return nil
	},
}
