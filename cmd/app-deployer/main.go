// cmd/app-deployer/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "app-deployer",
	Short: "Generate, publish and report single-page apps from natural-language briefs",
	Long: `app-deployer accepts build requests over HTTP, generates a single HTML
document with a chat-completions backend, publishes it to a GitHub repository
with Pages enabled and reports the commit to the caller's evaluation URL.

Round 1 creates the repository. Round 2 revises the published page in place.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default: configs/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
