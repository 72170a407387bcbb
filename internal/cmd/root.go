// Package cmd implements the magi command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/magiconsole/magi"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "magi",
	Short: "Portfolio console backend",
	Long: `magi serves the portfolio console API: a chat endpoint backed by a
provider fallback chain, a rate-limited contact relay and a visit counter.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// loadConfig reads --config, or falls back to DefaultConfig.
func loadConfig() (magi.Config, error) {
	if cfgFile == "" {
		cfg := magi.DefaultConfig()
		cfg.ApplyDefaults()
		if verbose {
			cfg.Log.Level = "debug"
		}
		return cfg, cfg.Validate()
	}

	cfg, err := magi.LoadConfig(cfgFile)
	if err != nil {
		return magi.Config{}, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
