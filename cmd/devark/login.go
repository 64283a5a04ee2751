package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DevArk-AI/devark/internal/api"
	"github.com/DevArk-AI/devark/internal/config"
	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/internal/tokenstore"
)

const (
	loginPollInterval = 2 * time.Second
	loginTimeout      = 5 * time.Minute
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the devark backend",
	Long: `Open a browser login session and wait for it to complete. The resulting
token is stored encrypted on disk and used for session uploads.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored backend token",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens := tokenstore.NewFileStore(paths.DevarkDir())
		if err := tokens.ClearToken(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	tokens := tokenstore.NewFileStore(paths.DevarkDir())
	client := api.NewClient(config.Get().BaseURL, tokens)

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	session, err := client.CreateAuthSession(ctx)
	if err != nil {
		return fmt.Errorf("start login: %w", err)
	}
	fmt.Printf("Open this URL in your browser to log in:\n\n  %s\n\nWaiting for login to complete...\n", session.AuthURL)

	token, err := waitForCompletion(ctx, client, session.PollToken())
	if err != nil {
		return err
	}
	if err := tokens.StoreToken(token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	verification, err := client.VerifyAuth(ctx)
	if err == nil && verification.IsValid() {
		fmt.Println("Logged in.")
	} else {
		fmt.Println("Token stored, but verification did not confirm it yet.")
	}
	return nil
}

// waitForCompletion polls the completion endpoint until the browser flow
// finishes or the context expires. A pending session polls again; any
// other failure aborts.
func waitForCompletion(ctx context.Context, client *api.Client, pollToken string) (string, error) {
	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("login timed out")
		case <-ticker.C:
			completion, err := client.CompleteAuth(ctx, pollToken)
			if err != nil {
				return "", fmt.Errorf("poll login: %w", err)
			}
			if completion.Success && completion.Token != "" {
				return completion.Token, nil
			}
		}
	}
}
