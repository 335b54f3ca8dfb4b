package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bankfeed/cmd/client/cmd/types"
	"bankfeed/internal/app/client"
)

// AccountsCmd lists accounts when run bare; transactions is a
// subcommand. Listings fall back to the local cache when the server is
// unreachable.
var AccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List synchronized accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		accounts, fromCache, err := app.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		if fromCache {
			color.Yellow("Server unreachable; showing cached data.")
		}

		if len(accounts) == 0 {
			fmt.Println("No accounts yet. Link an institution with: bankfeed link start")
			return nil
		}

		for _, a := range accounts {
			fmt.Printf("[%d] %-30s %-10s %s\n",
				a.ID, a.Name, a.Type, formatAmount(a.CurrentBalance, a.Currency))
		}
		return nil
	},
}

// formatAmount renders integer minor units as a decimal amount.
func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}

func appFrom(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return app, nil
}
