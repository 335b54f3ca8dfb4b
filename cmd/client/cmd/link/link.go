package link

import (
	"fmt"

	"github.com/spf13/cobra"

	"bankfeed/cmd/client/cmd/types"
	"bankfeed/internal/app/client"
)

// LinkCmd is the parent command for linking an institution.
var LinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a bank institution",
	Long: `Linking is a two-step flow: "link start" opens an aggregator session
you complete in the institution's login UI, and "link complete" exchanges
the resulting public token for a permanent connection.`,
}

func appFrom(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return app, nil
}
