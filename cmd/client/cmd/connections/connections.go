package connections

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bankfeed/cmd/client/cmd/types"
	"bankfeed/internal/app/client"
	"bankfeed/internal/domain/connection"
)

// ConnectionsCmd lists connections when run bare; sync and unlink are
// subcommands.
var ConnectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage linked institutions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		conns, err := app.ListConnections(ctx)
		if err != nil {
			return fmt.Errorf("list connections: %w", err)
		}

		if len(conns) == 0 {
			fmt.Println("No linked institutions. Start with: bankfeed link start")
			return nil
		}

		for _, c := range conns {
			printConnection(c)
		}
		return nil
	},
}

func printConnection(c connection.Connection) {
	status := color.GreenString(string(c.Status))
	if c.Status == connection.StatusError {
		status = color.RedString(string(c.Status))
	}

	fmt.Printf("[%d] %s  %s\n", c.ID, c.InstitutionName, status)
	if c.SyncCursor == nil {
		fmt.Println("     never synced")
	}
	if c.ErrorDetail != "" {
		fmt.Printf("     %s\n", c.ErrorDetail)
	}
}

func appFrom(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return app, nil
}
