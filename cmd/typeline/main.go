package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alucardeht/typeline/internal/config"
	"github.com/alucardeht/typeline/internal/logger"
	"github.com/alucardeht/typeline/pkg/version"
)

var (
	flagConfig   string
	flagLogLevel string
)

// exitCode carries the checker's exit status out of RunE so main can
// propagate it. 0 clean, 1 type errors, 3 infrastructure failure.
var exitCode int

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:           "typeline",
	Short:         "Python type checking toolchain: project checks, editor bridge, release pipeline",
	SilenceErrors: true,
	SilenceUsage:  true,
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: typeline.json found upward from cwd)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(playgroundCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective config and initializes logging from it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, wdErr
		}
		cfg, err = config.Load(wd)
	}
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(level)
	logCfg.Output = os.Stderr
	logger.Init(logCfg)

	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the typeline version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}
