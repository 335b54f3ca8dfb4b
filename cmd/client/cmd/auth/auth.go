package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"bankfeed/cmd/client/cmd/types"
	"bankfeed/internal/app/client"
)

// AuthCmd is the parent command for user registration and login.
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the user account",
	Long:  `Register on the server and authenticate.`,
}

func appFrom(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return app, nil
}
