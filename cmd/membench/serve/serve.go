// Package servecmder provides the serve command for running the results
// API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/api"
	"github.com/papercomputeco/membench/api/mcp"
	"github.com/papercomputeco/membench/cmd/membench/stack"
	"github.com/papercomputeco/membench/pkg/archive/sqlite"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/logger"
)

const serveLongDesc string = `Run the results API server over the run archive.

Serves archived runs over HTTP and mounts the MCP tool endpoint at /mcp
so agents can query benchmark results. When the archive is a sqlite
file, the server watches it and reopens on change, so runs finished by
other processes show up without a restart.

Examples:
  membench serve
  membench serve --listen :9090
  membench serve --archive-target ./membench_results/archive.db`

const serveShortDesc string = "Run the results API server"

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagArchiveProvider,
	config.FlagArchiveTarget,
	config.FlagResultsDir,
}

type serveCommander struct {
	debug  bool
	logger *zap.Logger

	listen          string
	archiveProvider string
	archiveTarget   string
	resultsDir      string
}

// NewServeCmd creates the serve cobra command.
func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context(), cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveProvider, &cmder.archiveProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveTarget, &cmder.archiveTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagResultsDir, &cmder.resultsDir)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, serveFlagKeys)
	if err != nil {
		return err
	}

	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	driver, err := stack.NewArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if driver == nil {
		return fmt.Errorf("%w: serve requires a run archive (archive.provider is %q)", config.ErrInvalid, cfg.Archive.Provider)
	}

	store := api.NewStore(driver)
	defer store.Close()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Store:  store,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, store, mcpServer.Handler(), c.logger)

	c.logger.Info("starting results API server",
		zap.String("listen", cfg.API.Listen),
		zap.String("archive", cfg.Archive.Provider),
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	// Watch a sqlite archive file so externally finished runs appear
	// without a restart.
	if cfg.Archive.Provider == "sqlite" {
		dbPath := cfg.Archive.Target
		if dbPath == "" {
			dbPath = sqlite.DefaultPath(cfg.Results.Dir)
		}

		go func() {
			if err := c.watchArchive(watchCtx, cfg, store, dbPath); err != nil {
				errChan <- fmt.Errorf("archive watcher error: %w", err)
			}
		}()
	}

	// Start API server in goroutine
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

// watchArchive reopens the sqlite archive when the file changes on
// disk. A reopen failure keeps the current driver serving.
func (c *serveCommander) watchArchive(ctx context.Context, cfg *config.Config, store *api.Store, dbPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating archive watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		return fmt.Errorf("watching archive dir: %w", err)
	}

	var lastReopen time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != filepath.Clean(dbPath) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Bursts of writes land as one reopen.
			if time.Since(lastReopen) < time.Second {
				continue
			}
			lastReopen = time.Now()

			next, err := stack.NewArchive(ctx, cfg)
			if err != nil || next == nil {
				c.logger.Warn("reopening archive", zap.String("path", dbPath), zap.Error(err))
				continue
			}

			old := store.Swap(next)
			if err := old.Close(); err != nil {
				c.logger.Warn("closing previous archive driver", zap.Error(err))
			}

			c.logger.Info("archive reopened", zap.String("path", dbPath))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("archive watcher", zap.Error(err))
		}
	}
}
