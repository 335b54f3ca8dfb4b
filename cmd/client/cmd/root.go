package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"bankfeed/cmd/client/cmd/accounts"
	"bankfeed/cmd/client/cmd/auth"
	"bankfeed/cmd/client/cmd/connections"
	"bankfeed/cmd/client/cmd/link"
	"bankfeed/cmd/client/cmd/types"
	"bankfeed/internal/app/client"
	"bankfeed/internal/app/client/config"
	"bankfeed/internal/utils/logger"
)

var (
	cfgFile   string
	serverURL string
	cfg       *config.Config
	log       *slog.Logger
	app       *client.App
)

var rootCmd = &cobra.Command{
	Use:   "bankfeed",
	Short: "Bankfeed - a client for synchronized bank account data",
	Long: `Bankfeed links your bank accounts through a data aggregator and keeps
a local view of accounts and transactions in sync with the server.

Typical flow:
  1. bankfeed auth register / bankfeed auth login
  2. bankfeed link start, complete the institution login, bankfeed link complete
  3. bankfeed accounts, bankfeed accounts transactions <id>`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	cfg = config.MustLoad()
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	log = logger.New(cfg.Env)

	var err error
	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "bankfeed server address")

	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)

	rootCmd.AddCommand(link.LinkCmd)
	link.LinkCmd.AddCommand(link.StartCmd)
	link.LinkCmd.AddCommand(link.CompleteCmd)

	rootCmd.AddCommand(connections.ConnectionsCmd)
	connections.ConnectionsCmd.AddCommand(connections.SyncCmd)
	connections.ConnectionsCmd.AddCommand(connections.UnlinkCmd)

	rootCmd.AddCommand(accounts.AccountsCmd)
	accounts.AccountsCmd.AddCommand(accounts.TransactionsCmd)
}
