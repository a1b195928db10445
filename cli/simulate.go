package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/absmach/flround"
	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/storage"
	"github.com/absmach/flround/pkg/transport/local"
	"github.com/absmach/flround/worker"
	"github.com/spf13/cobra"
)

// Simulate runs cfg's experiment against in-process fibonacci workers and
// persists the best round to cfg.Storage.
func Simulate(ctx context.Context, cfg flround.Config, logger *slog.Logger) (fl.Selection, error) {
	if cfg.Coordinator.NumClients <= 0 {
		return fl.Selection{}, fmt.Errorf("%w: simulation needs at least one worker", fl.ErrInvalidConfig)
	}
	initial, err := cfg.Experiment.State()
	if err != nil {
		return fl.Selection{}, err
	}

	repo, err := storage.New(cfg.Storage)
	if err != nil {
		return fl.Selection{}, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}
	defer repo.Close()

	ids := make([]string, 0, cfg.Coordinator.NumClients)
	for _, w := range fl.NewWorkerSet(cfg.Coordinator.NumClients) {
		ids = append(ids, w.ID)
	}
	workers := namedWorkers(ids)

	dispatcher := local.NewDispatcher()
	for _, w := range workers {
		wcfg := cfg.Worker
		wcfg.ID = w.ID
		dispatcher.Register(w.ID, worker.NewRuntime(wcfg, worker.Fibonacci{}, worker.Sum{}, logger.With(slog.String("worker", w.Name))))
	}

	svc, err := coordinator.NewService(cfg.Coordinator, dispatcher, repo, nil, logger)
	if err != nil {
		return fl.Selection{}, err
	}

	sel, err := svc.RunRounds(ctx, initial, cfg.Coordinator.NumRounds, workers, cfg.Coordinator.MetricKey)
	if err != nil {
		return sel, err
	}

	if err := repo.SaveBest(ctx, sel.Best); err != nil {
		return sel, fmt.Errorf("failed to persist best round: %w", err)
	}

	return sel, nil
}

func NewSimulateCmd() *cobra.Command {
	var (
		configFile string
		logLevel   string
		clients    int
		rounds     uint64
		level      float64
		metricKey  string
		storeType  string
		history    bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a federated run",
		Long: `Run the coordinator against in-process fibonacci workers and print the best round.

Examples:
  # Five workers, five rounds, fibonacci level 10
  flround simulate

  # Three workers, two rounds, persisting rounds on disk
  flround simulate --clients 3 --rounds 2 --storage file`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg, err := simulationConfig(configFile)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			flags := cmd.Flags()
			if flags.Changed("clients") {
				cfg.Coordinator.NumClients = clients
			}
			if flags.Changed("rounds") {
				cfg.Coordinator.NumRounds = rounds
			}
			if flags.Changed("level") {
				cfg.Experiment.InitialState = map[string][]float64{cfg.Worker.ParamKey: {level}}
			}
			if flags.Changed("metric-key") {
				cfg.Coordinator.MetricKey = metricKey
			}
			if flags.Changed("storage") {
				cfg.Storage.Type = storeType
			}

			logger, err := newLogger(cmd.ErrOrStderr(), logLevel)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			sel, err := Simulate(cmd.Context(), cfg, logger)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if history {
				logJSONCmd(*cmd, sel)

				return
			}
			logJSONCmd(*cmd, sel.Best)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Experiment TOML file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().IntVar(&clients, "clients", 0, "Number of workers")
	cmd.Flags().Uint64Var(&rounds, "rounds", 0, "Number of rounds")
	cmd.Flags().Float64Var(&level, "level", flround.DefaultLevel, "Initial fibonacci level")
	cmd.Flags().StringVar(&metricKey, "metric-key", "", "Metric used to select the best round")
	cmd.Flags().StringVar(&storeType, "storage", "", "Round storage: memory, file, badger, sqlite or postgres")
	cmd.Flags().BoolVar(&history, "history", false, "Print every round instead of the best one")

	return cmd
}

func simulationConfig(path string) (flround.Config, error) {
	if path == "" {
		return flround.DefaultConfig()
	}

	cfg, err := flround.LoadConfig(path)
	if err != nil {
		return flround.Config{}, err
	}

	return *cfg, nil
}
