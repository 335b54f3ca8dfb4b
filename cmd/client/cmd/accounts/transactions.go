package accounts

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var includeHidden bool

var TransactionsCmd = &cobra.Command{
	Use:   "transactions <account-id>",
	Short: "List an account's transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		accountID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid account id %q", args[0])
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		transactions, fromCache, err := app.ListTransactions(ctx, accountID, includeHidden)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		if fromCache {
			color.Yellow("Server unreachable; showing cached data.")
		}

		if len(transactions) == 0 {
			fmt.Println("No transactions.")
			return nil
		}

		for _, t := range transactions {
			marker := " "
			if t.Pending {
				marker = "~"
			}
			line := fmt.Sprintf("%s %s  %-40s %12s",
				marker, t.PostedAt.Format("2006-01-02"), t.Description,
				formatAmount(t.Amount, ""))
			if t.Hidden {
				color.New(color.Faint).Printf("%s (hidden)\n", line)
				continue
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	TransactionsCmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "include tombstoned transactions")
}
