// Chatrelay
//
// A stateless HTTP endpoint that relays a browser chat conversation to a
// hosted completion API under a fixed persona.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "Chatrelay - persona chat relay",
	Long: `Chatrelay relays a chat conversation to a completion API and answers
with the assistant's reply.

  chatrelay serve                         Start the relay
  chatrelay serve --config chatrelay.yaml Start with a config file
  chatrelay validate --config FILE        Check a config file and exit
  chatrelay version                       Print the version`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chatrelay %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("CHATRELAY_CONFIG", "chatrelay.yaml"), "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the configuration")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
