package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/antiv/internal/config"
	"github.com/zhengda-lu/antiv/internal/detection"
	"github.com/zhengda-lu/antiv/internal/engine"
	"github.com/zhengda-lu/antiv/internal/history"
	"github.com/zhengda-lu/antiv/internal/logging"
	"github.com/zhengda-lu/antiv/internal/quarantine"
	"github.com/zhengda-lu/antiv/internal/schedule"
)

var (
	jsonFlag     bool
	configPath   string
	logLevelFlag string
	appConfig    *config.Config
	appLogger    *slog.Logger

	// Set via ldflags at build time.
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:           "antiv",
	Short:         "On-demand and scheduled malware scans with quarantine",
	Long:          "antiv drives clamscan over a directory, moves detected files into a private quarantine,\nand runs recurring scans from a schedule file.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Flags().Changed("version") {
			appConfig = config.Default()
			appLogger = logging.Discard()
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg

		logger, err := newLogger(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
			logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		}
		appLogger = logger

		for _, w := range appConfig.Validate() {
			appLogger.Warn("config: "+w.Message, "field", w.Field)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// RootCmd returns the root cobra command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("antiv %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/antiv/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(quarantineCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(configCmd)
}

func newLogger(out io.Writer) (*slog.Logger, error) {
	level := appConfig.Log.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logger, err := logging.New(logging.Options{Level: level, Format: appConfig.Log.Format, Output: out})
	if err != nil {
		return nil, fmt.Errorf("invalid log settings: %w", err)
	}
	return logger, nil
}

func openQuarantine() (*quarantine.Store, error) {
	naming, err := quarantine.ParseNaming(appConfig.Quarantine.Naming)
	if err != nil {
		return nil, err
	}
	return quarantine.Open(appConfig.QuarantineDir(),
		quarantine.WithNaming(naming),
		quarantine.WithLogger(appLogger),
	)
}

func scheduleStore() *schedule.Store {
	return schedule.NewStore(appConfig.ScheduleFile(), appLogger)
}

func historyStore() *history.History {
	return history.New(appConfig.HistoryFile())
}

// buildEngine wires the scanner, quarantine and history together. With
// quarantine disabled detections are only reported.
func buildEngine(withQuarantine bool) (*engine.Engine, error) {
	sc := appConfig.ScannerConfig()
	sc.Logger = appLogger

	opts := engine.Options{
		Scanner:  sc,
		Recorder: historyStore(),
		Logger:   appLogger,
	}
	if withQuarantine {
		store, err := openQuarantine()
		if err != nil {
			return nil, err
		}
		opts.Handler = detection.NewHandler(store, appConfig.Engine.Delimiter, appConfig.Engine.FoundMarker, appLogger)
	}
	return engine.New(opts), nil
}
