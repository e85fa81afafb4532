// Package cli provides the embosser command line
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nixxel-company-limited/embosser-controller/config"
	"github.com/nixxel-company-limited/embosser-controller/logging"
)

var (
	cfgFile  string
	logLevel string
	jsonLogs bool

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "embosser",
	Short: "Drive a braille embosser through its gateway",
	Long: `embosser transcribes text or PDF documents into braille dot pages and drives
an embossing device page by page, with pause, resume and stop control and a live
view of the dots struck so far.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		format := cfg.Log.Format
		if jsonLogs {
			format = "json"
		}
		logger = logging.New(logging.Conf{
			Level:   level,
			Format:  format,
			Output:  os.Stderr,
			Service: "embosser",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: env vars only)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "log as JSON")

	rootCmd.AddCommand(serveCmd, portsCmd, printCmd, previewCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
