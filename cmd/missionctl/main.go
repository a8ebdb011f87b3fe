// missionctl serves the Mission Control dashboard data layer: it parses the
// markdown source-of-truth files in a workspace, rebuilds on change, and
// serves the result over HTTP and SSE.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"missionctl/internal/broadcast"
	"missionctl/internal/builder"
	"missionctl/internal/cache"
	"missionctl/internal/config"
	"missionctl/internal/gitstats"
	"missionctl/internal/pipeline"
	"missionctl/internal/server"
	"missionctl/internal/watcher"
	"missionctl/internal/workspace"
)

const version = "1.0.0"

var (
	// Global flags
	verbose    bool
	configPath string
	wsOverride string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "missionctl",
	Short: "Mission Control data layer",
	Long: `missionctl turns a workspace of hand-written markdown files (agent
roster, task list, project notes, persona documents) into structured JSON,
rebuilds it whenever a file changes, and serves it to the dashboard UI over
HTTP with live change notifications.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			zapCfg.Encoding = "console"
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the workspace and serve the dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pipe := newPipeline(cfg)
		defer pipe.Hub().Close()

		// Cold start: serve the previous snapshot until the first live
		// build lands.
		pipe.RestoreSnapshot()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Initial build. A failure here is logged and broadcast, not fatal:
		// the watcher keeps running and the next change retries.
		if _, err := pipe.Rebuild(ctx); err != nil {
			logger.Warn("initial build failed", zap.Error(err))
		}

		w, err := watcher.New(cfg.Workspace.Root, pipe, cfg.SnapshotPath(),
			cfg.Watcher.QuietDuration(), logger.Named("watcher"))
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()

		srv := server.New(cfg.Server.Addr, pipe, logger.Named("http"))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(ctx) })

		logger.Info("mission control data layer ready",
			zap.String("workspace", cfg.Workspace.Root),
			zap.String("addr", cfg.Server.Addr))
		return g.Wait()
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the data snapshot once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pipe := newPipeline(cfg)
		defer pipe.Hub().Close()

		if _, err := pipe.Rebuild(cmd.Context()); err != nil {
			return err
		}

		doc, _ := pipe.Document()
		fmt.Printf("Snapshot written to %s\n", cfg.SnapshotPath())
		fmt.Printf("  Agents:   %d\n", len(doc.Agents))
		fmt.Printf("  Tasks:    %d\n", len(doc.Tasks))
		fmt.Printf("  Projects: %d\n", len(doc.Projects))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the missionctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("missionctl %s\n", version)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if wsOverride != "" {
		cfg.Workspace.Root = wsOverride
	}
	return cfg, nil
}

func newPipeline(cfg *config.Config) *pipeline.Pipeline {
	reader := workspace.NewReader(cfg.Workspace.Root, workspace.WithFileNames(
		cfg.Workspace.AgentsFile,
		cfg.Workspace.TasksFile,
		cfg.Workspace.ProjectsFile,
		cfg.Workspace.PreferencesFile,
	))
	scanner := gitstats.NewScanner(cfg.Workspace.Root, cfg.Git.Depth,
		cfg.Git.TimeoutDuration(), logger.Named("gitstats"))
	b := builder.New(reader, scanner, logger.Named("builder"))
	hub := broadcast.NewHub(cfg.Server.SubscriberBuffer, logger.Named("broadcast"))
	return pipeline.New(b, cache.NewStore(), hub, cfg.SnapshotPath(), logger.Named("pipeline"))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "missionctl.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&wsOverride, "workspace", "w", "", "workspace root (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
