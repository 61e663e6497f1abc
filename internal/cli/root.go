package cli

import (
	"github.com/spf13/cobra"

	"listforge/pkg/config"
	"listforge/pkg/logger"
)

var verbose bool

// Execute runs the listforge command tree.
func Execute() error {
	root := &cobra.Command{
		Use:   "listforge",
		Short: "Batch pipeline that turns finished design files into drafted marketplace listings",
		Long: `listforge discovers finished digital-art files, generates listing text and
product mockups, customizes the delivery document, uploads artifacts, and
drafts marketplace listings. Designs are processed one at a time, fail-fast,
with bounded local scratch storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newCacheCmd())

	return root.Execute()
}

// loadConfig loads configuration and applies the logging flags.
func loadConfig() (*config.Config, error) {
	cfg, path, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	level, _ := logger.ParseLevel(cfg.Logging.Level)
	if verbose || cfg.Logging.Verbose {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	logger.Debug("configuration loaded", "source", path)
	return cfg, nil
}
