// Package main provides the Huginn CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orneryd/huginn/pkg/analytics"
	"github.com/orneryd/huginn/pkg/catalog"
	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/reason"
	"github.com/orneryd/huginn/pkg/seed"
	"github.com/orneryd/huginn/pkg/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "huginn",
		Short: "Huginn - knowledge-graph reasoning for water treatment plants",
		Long: `Huginn maintains a property graph of treatment equipment and sensors
and reasons over it with a catalog of inference rules, axioms, and
constraints. Derived facts are written back into the graph and can be
inspected, traced, and cleared.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Huginn v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, cmd)
		},
	}
	serveCmd.Flags().Bool("seed", false, "Seed the demo plant before serving")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Seed the demo water treatment plant into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(configPath)
		},
	})

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every axiom and constraint against the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(configPath)
		},
	}
	rootCmd.AddCommand(validateCmd)

	inferCmd := &cobra.Command{
		Use:   "infer",
		Short: "Run every inference rule once and report derived facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(configPath)
		},
	}
	rootCmd.AddCommand(inferCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(configPath string) (*config.Config, graph.Store, *reason.Service, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.Logging)

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	svc := reason.NewService(store, catalog.Builtin(), log)
	return cfg, store, svc, log, nil
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func openStore(cfg *config.Config, log *logrus.Logger) (graph.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		log.WithField("dir", cfg.Storage.DataDir).Info("opening badger store")
		return graph.NewBadgerStore(graph.BadgerOptions{
			DataDir:    cfg.Storage.DataDir,
			SyncWrites: cfg.Storage.SyncWrites,
		})
	default:
		log.Info("using in-memory store")
		return graph.NewMemoryStore(), nil
	}
}

func runServe(configPath string, cmd *cobra.Command) error {
	cfg, store, svc, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if doSeed, _ := cmd.Flags().GetBool("seed"); doSeed {
		summary, err := seed.Plant(context.Background(), store, log)
		if err != nil {
			return fmt.Errorf("seed plant: %w", err)
		}
		log.WithFields(logrus.Fields{"nodes": summary.Nodes, "edges": summary.Edges}).Info("demo plant seeded")
	}

	analyzer := analytics.NewAnalyzer(store, log)
	srv := server.New(cfg, store, svc, analyzer, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func runSeed(configPath string) error {
	_, store, _, log, err := setup(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := seed.Plant(context.Background(), store, log)
	if err != nil {
		return fmt.Errorf("seed plant: %w", err)
	}
	fmt.Printf("Seeded %d nodes and %d edges\n", summary.Nodes, summary.Edges)
	return nil
}

func runValidate(configPath string) error {
	_, store, svc, _, err := setup(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	axioms, err := svc.CheckAllAxioms(ctx)
	if err != nil {
		return err
	}
	constraints, err := svc.CheckAllConstraints(ctx)
	if err != nil {
		return err
	}

	out := map[string]any{"axioms": axioms, "constraints": constraints}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if axioms.Failed > 0 || constraints.Failed > 0 {
		return fmt.Errorf("%d definitions failed", axioms.Failed+constraints.Failed)
	}
	return nil
}

func runInfer(configPath string) error {
	_, store, svc, _, err := setup(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := svc.RunAllRules(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
