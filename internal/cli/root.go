package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	userID     string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envServer := os.Getenv("SERVER_URL")
	if envServer == "" {
		envServer = "ws://localhost:1919"
	}
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}
	envUser := os.Getenv("USER_ID")

	cmd := &cobra.Command{
		Use:   "motleycrowd",
		Short: "Room-based quiz game client powered by Gorilla WebSocket",
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", envServer, "game server websocket URL")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&userID, "user", envUser, "local user id")
	cmd.AddCommand(NewStartCmd(&configPath, &serverURL, &userID))
	cmd.AddCommand(NewReplayCmd(&configPath, &userID))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	return cmd
}
