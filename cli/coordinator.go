package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/flround"
	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/coordinator/api"
	"github.com/absmach/flround/coordinator/middleware"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/jaeger"
	pkgmqtt "github.com/absmach/flround/pkg/mqtt"
	"github.com/absmach/flround/pkg/prometheus"
	"github.com/absmach/flround/pkg/server"
	httpserver "github.com/absmach/flround/pkg/server/http"
	"github.com/absmach/flround/pkg/storage"
	"github.com/absmach/flround/pkg/transport"
	transporthttp "github.com/absmach/flround/pkg/transport/http"
	transportmqtt "github.com/absmach/flround/pkg/transport/mqtt"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	coordinatorSvcName   = "coordinator"
	defCoordinatorPort   = "9010"
	CoordinatorEnvPrefix = "FL_COORDINATOR_"

	TransportMQTT = "mqtt"
	TransportHTTP = "http"
)

var errUnknownTransport = errors.New("unknown transport")

type CoordinatorConfig struct {
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	InstanceID string `env:"INSTANCE_ID"`
	// ExperimentFile is a TOML file whose keys override the environment.
	ExperimentFile string `env:"EXPERIMENT_FILE"`
	// StateFile seeds the global state from JSON when no experiment file is set.
	StateFile        string            `env:"STATE_FILE"`
	Transport        string            `env:"TRANSPORT"          envDefault:"mqtt"`
	ContentType      string            `env:"CONTENT_TYPE"       envDefault:"application/json"`
	BaseTopic        string            `env:"BASE_TOPIC"         envDefault:"fl"`
	WorkerIDs        []string          `env:"WORKER_IDS"         envSeparator:","`
	WorkerAddresses  map[string]string `env:"WORKER_ADDRESSES"   envKeyValSeparator:"="`
	ExitOnCompletion bool              `env:"EXIT_ON_COMPLETION" envDefault:"false"`

	MQTT        pkgmqtt.Config `envPrefix:"MQTT_"`
	Server      server.Config  `envPrefix:"HTTP_"`
	Coordinator coordinator.Config
	Storage     storage.Config `envPrefix:"STORAGE_"`
	OTELURL     url.URL        `env:"OTEL_URL"`
	TraceRatio  float64        `env:"TRACE_RATIO" envDefault:"0"`
}

// LoadCoordinatorConfig reads the coordinator configuration from the
// environment.
func LoadCoordinatorConfig() (CoordinatorConfig, error) {
	cfg := CoordinatorConfig{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: CoordinatorEnvPrefix}); err != nil {
		return CoordinatorConfig{}, err
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = defCoordinatorPort
	}

	return cfg, nil
}

func StartCoordinator(ctx context.Context, cancel context.CancelFunc, cfg CoordinatorConfig) error {
	g, ctx := errgroup.WithContext(ctx)

	logger, err := newLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, coordinatorSvcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %s", err.Error())
		}
		defer func() {
			if err := sdktp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(coordinatorSvcName)

	initial, err := loadExperiment(&cfg)
	if err != nil {
		return err
	}

	repo, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}
	defer repo.Close()

	codec, err := fl.CodecFor(cfg.ContentType)
	if err != nil {
		return err
	}

	workers, dispatcher, notifier, closeTransport, err := newTransport(ctx, cfg, codec, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	svc, err := coordinator.NewService(cfg.Coordinator, dispatcher, repo, notifier, logger)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(coordinatorSvcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	hs := httpserver.NewServer(ctx, cancel, coordinatorSvcName, cfg.Server, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, coordinatorSvcName, hs)
	})

	g.Go(func() error {
		sel, err := svc.RunRounds(ctx, initial, cfg.Coordinator.NumRounds, workers, cfg.Coordinator.MetricKey)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("federated run failed: %w", err)
		}

		if err := repo.SaveBest(ctx, sel.Best); err != nil {
			return fmt.Errorf("failed to persist best round: %w", err)
		}

		args := []any{slog.Uint64("best_round", sel.Best.Round), slog.Int("rounds", len(sel.History))}
		if !math.IsNaN(sel.Best.Metric) {
			args = append(args, slog.Float64("best_metric", sel.Best.Metric))
		}
		logger.Info("Federated run completed", args...)

		if cfg.ExitOnCompletion {
			cancel()
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", coordinatorSvcName, err))

		return err
	}

	return nil
}

// loadExperiment resolves the initial global state. An experiment file also
// replaces the coordinator and storage sections of cfg.
func loadExperiment(cfg *CoordinatorConfig) (fl.GlobalState, error) {
	switch {
	case cfg.ExperimentFile != "":
		exp, err := flround.LoadConfig(cfg.ExperimentFile)
		if err != nil {
			return fl.GlobalState{}, err
		}
		cfg.Coordinator = exp.Coordinator
		cfg.Storage = exp.Storage

		return exp.Experiment.State()
	case cfg.StateFile != "":
		f, err := os.Open(cfg.StateFile)
		if err != nil {
			return fl.GlobalState{}, fmt.Errorf("failed to open state file: %w", err)
		}
		defer f.Close()

		return fl.LoadState(f)
	default:
		defaults, err := flround.DefaultConfig()
		if err != nil {
			return fl.GlobalState{}, err
		}

		return defaults.Experiment.State()
	}
}

func newTransport(ctx context.Context, cfg CoordinatorConfig, codec fl.Codec, logger *slog.Logger) ([]fl.WorkerHandle, transport.Dispatcher, coordinator.Notifier, func(), error) {
	switch cfg.Transport {
	case TransportMQTT:
		topics := pkgmqtt.NewTopics(cfg.BaseTopic)
		pubsub, err := pkgmqtt.NewPubSub(cfg.MQTT, coordinatorSvcName+"-"+cfg.InstanceID, codec, logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to initialize mqtt pubsub: %s", err.Error())
		}

		dispatcher, err := transportmqtt.NewDispatcher(ctx, pubsub, topics, codec, logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to subscribe to worker results: %w", err)
		}

		closeFn := func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := dispatcher.Close(stopCtx); err != nil {
				logger.Warn("Failed to unsubscribe from worker results", slog.Any("error", err))
			}
			if err := pubsub.Disconnect(stopCtx); err != nil {
				logger.Warn("Failed to disconnect from MQTT broker", slog.Any("error", err))
			}
		}

		ids := cfg.WorkerIDs
		if len(ids) == 0 {
			for _, w := range fl.NewWorkerSet(cfg.Coordinator.NumClients) {
				ids = append(ids, w.ID)
			}
		}

		return namedWorkers(ids), dispatcher, coordinator.NewMQTTNotifier(pubsub, topics), closeFn, nil
	case TransportHTTP:
		if len(cfg.WorkerAddresses) == 0 {
			return nil, nil, nil, nil, fmt.Errorf("%w: no worker addresses", fl.ErrInvalidConfig)
		}
		client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		dispatcher := transporthttp.NewDispatcher(cfg.WorkerAddresses, codec, client)

		return namedWorkers(slices.Sorted(maps.Keys(cfg.WorkerAddresses))), dispatcher, nil, func() {}, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("%w: %q", errUnknownTransport, cfg.Transport)
	}
}

// namedWorkers gives every worker a readable display name for logs.
func namedWorkers(ids []string) []fl.WorkerHandle {
	gen := namegenerator.NewGenerator()
	workers := make([]fl.WorkerHandle, len(ids))
	for i, id := range ids {
		workers[i] = fl.WorkerHandle{ID: id, Name: gen.Generate()}
	}

	return workers
}

func NewCoordinatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coordinator [start]",
		Short: "Coordinator management",
		Long:  `Run the federated round coordinator.`,
	}

	var experimentFile string

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start coordinator",
		Long:  `Start the coordinator configured from FL_COORDINATOR_* environment variables.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := LoadCoordinatorConfig()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if experimentFile != "" {
				cfg.ExperimentFile = experimentFile
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartCoordinator(ctx, cancel, cfg); err != nil {
				logErrorCmd(*cmd, err)
			}
		},
	}

	startCmd.Flags().StringVarP(&experimentFile, "config", "c", "", "Experiment TOML file")

	cmd.AddCommand(startCmd)

	return cmd
}
