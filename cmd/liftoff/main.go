// Command liftoff serves the launch dashboard and the launch proxy endpoint.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "liftoff",
	Short: "SpaceX launch dashboard",
	Long: `liftoff renders the most recent SpaceX launches as a card dashboard and
forwards the ten latest launch records on /api/spacex/launches.

Example:
  liftoff serve
  liftoff serve --port 9090 --config-dir ./liftoff
  liftoff config set upstream_timeout 10s
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", defaultConfigDir(), "Directory holding config.yaml and the audit database")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".liftoff"
	}
	return filepath.Join(dir, "liftoff")
}

func configDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
