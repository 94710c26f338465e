package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/filesync"
)

func newSyncCommand(workspaceDir *string) *cobra.Command {
	var watch bool
	var debounceMS int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan the data directory and optionally watch it for live changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(*workspaceDir)
			if err != nil {
				return err
			}
			defer e.Close()

			cfg := entity.SyncConfig{Watch: watch, WatchDebounceMS: debounceMS, OnSessionStart: true}
			if cfg.WatchDebounceMS <= 0 {
				cfg.WatchDebounceMS = e.cfg.Sync.WatchDebounceMS
			}

			syncer := filesync.New(e.repo, cfg)
			report, err := syncer.Start(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scanned %d files: %d created, %d updated, %d skipped, %d quarantined\n",
				report.TotalFiles, report.Ingested, report.Updated, report.Skipped, report.Quarantined)
			for _, scanErr := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "scan error: %s\n", scanErr)
			}

			if !watch {
				return nil
			}

			fmt.Fprintln(out, "watching for changes, press Ctrl+C to stop")
			<-notifyInterrupt()
			syncer.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep watching the data directory after the initial scan")
	cmd.Flags().IntVar(&debounceMS, "debounce-ms", 0, "per-file debounce interval in milliseconds")
	return cmd
}
