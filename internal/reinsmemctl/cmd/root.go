// Package cmd implements the reinsmemctl CLI: a plain cobra root command
// exposing the memory engine's service façade (remember, search, sync,
// reconcile, export, import), grounded on the teacher's cmd/echoctl
// bootstrap pattern but without its genericapiserver/templates scaffolding.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiosk404/reinsmem/internal/memory/cache"
	"github.com/kiosk404/reinsmem/internal/memory/embedding"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/repository"
	"github.com/kiosk404/reinsmem/internal/memory/service"
	"github.com/kiosk404/reinsmem/internal/memory/store"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

const envPrefix = "REINSMEM"

// NewDefaultReinsmemCtlCommand creates the `reinsmemctl` command wired
// against os.Stdin/Stdout/Stderr.
func NewDefaultReinsmemCtlCommand() *cobra.Command {
	return NewReinsmemCtlCommand(os.Stdin, os.Stdout, os.Stderr)
}

// NewReinsmemCtlCommand builds the root command and registers every
// subcommand against the given IO streams.
func NewReinsmemCtlCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var workspaceDir string
	var logLevel string

	cmds := &cobra.Command{
		Use:   "reinsmemctl",
		Short: "reinsmemctl manages the local content-addressable memory store",
		Long: `reinsmemctl is the CLI for the local memory engine: a SQLite-backed,
Markdown-mirrored content-addressable store for a conversational assistant's
long-term memory. Use it to remember facts, search across memories, sync the
file watcher, reconcile the store against disk, and export/import records.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				return logger.SetLevel(logLevel)
			}
			return nil
		},
	}
	cmds.SetOut(out)
	cmds.SetErr(errOut)
	cmds.SetIn(in)

	flags := cmds.PersistentFlags()
	home, _ := os.UserHomeDir()
	flags.StringVar(&workspaceDir, "workspace", filepath.Join(home, ".reins", "environments", "default"), "memory engine workspace directory")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	_ = viper.BindPFlags(flags)

	cmds.AddCommand(
		newRememberCommand(&workspaceDir),
		newSearchCommand(&workspaceDir),
		newSyncCommand(&workspaceDir),
		newReconcileCommand(&workspaceDir),
		newExportCommand(&workspaceDir),
		newImportCommand(&workspaceDir),
	)

	return cmds
}

// engine bundles the components every subcommand needs, built fresh per
// invocation (the CLI is not a long-lived process).
type engine struct {
	st      *store.Store
	repo    *repository.Repository
	svc     *service.Service
	cfg     entity.MemoryConfig
	closeFn func() error
}

func openEngine(workspaceDir string) (*engine, error) {
	home, _ := os.UserHomeDir()
	cfg := entity.DefaultMemoryConfig(home)
	if workspaceDir != "" {
		cfg.WorkspaceDir = workspaceDir
		cfg.Store.Path = filepath.Join(workspaceDir, "memories.db")
	}

	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	// The embedding provider is constructed before the store so its fixed
	// dimension can size the memory_vec vec0 table at open time.
	providerResult, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	cfg.Store.Vector.Dimension = providerResult.Provider.Dimension()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	repo := repository.New(st, cfg.DataDir())

	provider := providerResult.Provider
	if cfg.Cache.Enabled {
		embCache, err := cache.New(cfg.Cache)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		provider = cache.Wrap(provider, embCache)
	}

	svc := service.New(service.Dependencies{
		Repo: repo, Store: st, Provider: provider, Query: cfg.Query,
	})
	if err := svc.Initialize(context.Background()); err != nil {
		_ = st.Close()
		return nil, err
	}

	return &engine{st: st, repo: repo, svc: svc, cfg: cfg, closeFn: st.Close}, nil
}

func (e *engine) Close() {
	if e == nil || e.closeFn == nil {
		return
	}
	_ = e.closeFn()
}

// notifyInterrupt returns a channel closed on SIGINT/SIGTERM, used by
// long-running subcommands (sync --watch) to exit cleanly.
func notifyInterrupt() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
