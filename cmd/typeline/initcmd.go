package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alucardeht/typeline/internal/config"
)

var flagForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default typeline.json in the given directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		path := filepath.Join(dir, config.FileName)
		if _, err := os.Stat(path); err == nil && !flagForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.Default().Write(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite an existing config")
}
