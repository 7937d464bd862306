// Package cli provides the notechat developer command-line interface.
package cli

import (
	"fmt"

	"github.com/ashureev/notechat/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "notechat",
	Short: "Developer tools for the notechat relay",
	Long: `notechat talks to a running notechat relay and prepares local data for it.

It reads the same environment (.env, NOTECHAT_CONFIG, environment variables)
as the server, so tokens it mints verify against a server sharing the JWT secret
and notes it imports land in the server's SQLite note store.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		_ = godotenv.Load()

		var err error
		cfg, err = config.Read()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(importNoteCmd)
	rootCmd.AddCommand(chatCmd)
}
