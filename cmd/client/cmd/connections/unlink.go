package connections

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var unlinkYes bool

var UnlinkCmd = &cobra.Command{
	Use:   "unlink <connection-id>",
	Short: "Unlink an institution",
	Long: `Revokes the stored credential at the aggregator, removes the
connection's accounts, and hides its transactions. Hidden transactions
are kept for audit and can still be listed with --include-hidden.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		connID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid connection id %q", args[0])
		}

		if !unlinkYes {
			fmt.Printf("Unlink connection %d? [y/N]: ", connID)
			var answer string
			_, _ = fmt.Scanln(&answer)
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		result, err := app.Unlink(ctx, connID)
		if err != nil {
			return fmt.Errorf("unlink failed: %w", err)
		}

		if !result.Revoked {
			color.Yellow("Local data removed, but the credential could not be revoked upstream.")
			color.Yellow("The connection is kept in the error state; run unlink again later.")
			return nil
		}

		color.Green("Institution unlinked (%d transactions hidden).", result.TransactionsHidden)
		return nil
	},
}

func init() {
	UnlinkCmd.Flags().BoolVarP(&unlinkYes, "yes", "y", false, "skip the confirmation prompt")
}
