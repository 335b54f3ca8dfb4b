package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the bankfeed server",
	Long: `Authenticates on the server and stores the session token locally
for subsequent commands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		fmt.Print("Login: ")
		var login string
		_, _ = fmt.Scanln(&login)

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Println()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		token, err := app.Login(ctx, login, string(password))
		if err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}

		if err := app.SaveToken(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}

		color.Green("Logged in.")
		return nil
	},
}
