package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ieee0824/voiceprint-go/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "voiceprint",
	Short: "Speaker verification with GMM-UBM and joint factor analysis",
	Long: `voiceprint trains speaker models and verifies speakers.

Feature files are msgpack-encoded [][]float64 matrices, one row per frame.
Statistics and models are msgpack files written by the commands below.

Typical pipeline:
  voiceprint ubm -o ubm.mp --clusters 64 train/*.feat
  voiceprint stats --ubm ubm.mp -o alice-1.stats alice-1.feat
  voiceprint isv --ubm ubm.mp --manifest train.yaml -o base.mp
  voiceprint enroll --base base.mp --id alice alice-1.feat alice-2.feat
  voiceprint score --base base.mp --id alice probe.feat`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		if configPath == "" {
			cfg = config.Default()
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	rootCmd.AddCommand(ubmCmd, adaptCmd, statsCmd, jfaCmd, isvCmd, enrollCmd, scoreCmd, speakersCmd)
}
