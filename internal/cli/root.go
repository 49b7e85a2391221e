package cli

import (
	"github.com/spf13/cobra"

	"github.com/mgpai22/recut/internal/config"
	"github.com/mgpai22/recut/internal/logging"
)

var (
	verbose     bool
	configFile  string
	projectPath string
	cfg         *config.Config
	logger      *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "recut",
	Short: "Transcript-driven audio editor",
	Long: `Recut turns a recording into a transcript you can edit. Reordering,
deleting and splitting the transcript rearranges the audio without touching the
source file.

Start with "recut import" to build a project, then edit it with the document
or clip commands and export, render or play the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(
			config.WithFile(configFile),
			config.WithFlag("verbose", cmd.Flags().Lookup("verbose")),
			config.WithFlag("transcribe.language", cmd.Flags().Lookup("language")),
			config.WithFlag("log.file", cmd.Flags().Lookup("log-file")),
		)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(cfg.Verbose, logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "Config file (default: ./recut.yaml when present)")
	rootCmd.PersistentFlags().
		StringVarP(&projectPath, "project", "p", "recut.json", "Project file")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		StringP("language", "l", "", "Language code (e.g., en, es, fr)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this rotating file")
}
