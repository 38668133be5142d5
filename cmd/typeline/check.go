package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alucardeht/typeline/internal/checker"
	"github.com/alucardeht/typeline/internal/runner"
	"github.com/alucardeht/typeline/internal/store"
)

var (
	flagWatch               bool
	flagSuppressErrors      bool
	flagRemoveUnusedIgnores bool
	flagNoStore             bool
)

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Type-check the project or the given files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			exitCode = runner.ExitInfra
			return err
		}

		binary, err := checker.ResolveBinary(cfg.Checker.Path)
		if err != nil {
			exitCode = runner.ExitInfra
			return err
		}

		var st *store.Store
		if !flagNoStore && cfg.StorePath != "" {
			st, err = store.Open(cfg.StorePath)
			if err != nil {
				exitCode = runner.ExitInfra
				return err
			}
			defer st.Close()
		}

		r := runner.New(runner.Config{
			Binary: binary,
			Root:   cfg.Root,
			Globs: runner.FilteredGlobs{
				Root:     cfg.Root,
				Includes: cfg.Project.Includes,
				Excludes: cfg.Project.Excludes,
			},
			SuppressErrors:      flagSuppressErrors,
			RemoveUnusedIgnores: flagRemoveUnusedIgnores,
			ExtraArgs:           cfg.Checker.Args,
			Watcher:             cfg.Watcher,
		}, st)

		if flagWatch {
			return r.Watch(cmd.Context())
		}

		result, err := r.Check(cmd.Context(), args)
		if err != nil {
			exitCode = runner.ExitInfra
			return err
		}

		for _, e := range result.Errors {
			fmt.Printf("%s:%d:%d: %s [%s]\n", e.Path, e.Line, e.Column, e.Message, e.Code)
		}
		fmt.Fprintf(os.Stderr, "checked %d files in %s: %d errors\n",
			len(result.Files), result.Duration.Round(time.Millisecond), len(result.Errors))

		exitCode = result.ExitStatus
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&flagWatch, "watch", false, "re-check files as they change")
	checkCmd.Flags().BoolVar(&flagSuppressErrors, "suppress-errors", false, "insert suppression comments for reported errors")
	checkCmd.Flags().BoolVar(&flagRemoveUnusedIgnores, "remove-unused-ignores", false, "remove suppression comments that no longer fire")
	checkCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "skip recording the run in the local database")
}
