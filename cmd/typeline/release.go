package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alucardeht/typeline/internal/release"
	"github.com/alucardeht/typeline/internal/store"
)

var (
	flagDryRun         bool
	flagReleaseVersion string
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Build, smoke-test, merge and publish release artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ver := flagReleaseVersion
		if ver == "" {
			ver, err = release.ParseVersionFile(filepath.Join(cfg.Root, cfg.Release.VersionFile))
			if err != nil {
				return err
			}
		}

		opts := release.Options{
			Version:        ver,
			RepoDir:        cfg.Root,
			DistDir:        filepath.Join(cfg.Root, cfg.Release.DistDir),
			Platforms:      cfg.Release.Platforms,
			BuildCommand:   cfg.Release.BuildCommand,
			PublishCommand: cfg.Release.PublishCommand,
			PagesBranch:    cfg.Release.PagesBranch,
			SiteDir:        cfg.Release.SiteDir,
		}

		if flagDryRun {
			pipeline, err := release.Plan(opts, release.NewExecRunner())
			if err != nil {
				return err
			}
			fmt.Printf("release %s (%s)\n", ver, release.TagName(ver))
			for _, job := range pipeline.Jobs() {
				if len(job.Needs) == 0 {
					fmt.Printf("  %s\n", job.Name)
				} else {
					fmt.Printf("  %s (needs %v)\n", job.Name, job.Needs)
				}
			}
			return nil
		}

		var st *store.Store
		if cfg.StorePath != "" {
			st, err = store.Open(cfg.StorePath)
			if err != nil {
				return err
			}
			defer st.Close()
		}

		statuses, err := release.Execute(cmd.Context(), opts, release.NewExecRunner(), st)
		for name, status := range statuses {
			fmt.Printf("  %-24s %s\n", name, status)
		}
		return err
	},
}

func init() {
	releaseCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the release plan without running it")
	releaseCmd.Flags().StringVar(&flagReleaseVersion, "version", "", "release version (default: parsed from the version file)")
}
