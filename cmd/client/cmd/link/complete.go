package link

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	publicToken string
	institution string
)

var CompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Complete the link flow",
	Long: `Exchanges the single-use public token from a finished link flow.
The server stores the resulting credential encrypted and starts the
first sync in the background.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		connID, err := app.EstablishLink(ctx, publicToken, institution)
		if err != nil {
			return fmt.Errorf("establish link: %w", err)
		}

		color.Green("Institution linked (connection %d).", connID)
		fmt.Println("Accounts appear after the first sync; check with: bankfeed accounts")
		return nil
	},
}

func init() {
	CompleteCmd.Flags().StringVar(&publicToken, "public-token", "", "public token from the completed link flow")
	CompleteCmd.Flags().StringVar(&institution, "institution", "", "institution display name")
	_ = CompleteCmd.MarkFlagRequired("public-token")
}
