package main

import (
	"fmt"
	"os"

	"github.com/cuemby/stkgate/pkg/config"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stkgate",
	Short: "stkgate - stocker protocol gateway",
	Long: `stkgate terminates the binary protocol spoken by cleanroom stockers,
resolves carriers against the directory, forwards location requests to the
Ridian tag-location service and reports movements to lot tracking.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"stkgate version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to stkgate.yaml (default: $STKGATE_CONF/stkgate.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(directoryCmd)
}

// loadConfig reads --config when given, otherwise the STKGATE_CONF
// directory.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
