package main

import (
	"github.com/spf13/cobra"

	"github.com/alucardeht/typeline/internal/checker"
	"github.com/alucardeht/typeline/internal/playground"
)

var flagAddr string

var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Serve the playground site and snippet checking API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		binary, err := checker.ResolveBinary(cfg.Checker.Path)
		if err != nil {
			return err
		}

		addr := cfg.Playground.Addr
		if flagAddr != "" {
			addr = flagAddr
		}

		server := playground.New(playground.Config{
			Addr:    addr,
			SiteDir: cfg.Playground.SiteDir,
			Binary:  binary,
		})
		return server.Run()
	},
}

func init() {
	playgroundCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config)")
}
