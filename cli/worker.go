package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/jaeger"
	pkgmqtt "github.com/absmach/flround/pkg/mqtt"
	"github.com/absmach/flround/pkg/server"
	httpserver "github.com/absmach/flround/pkg/server/http"
	"github.com/absmach/flround/worker"
	"github.com/absmach/flround/worker/api"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	workerSvcName   = "worker"
	defWorkerPort   = "9020"
	WorkerEnvPrefix = "FL_WORKER_"
)

type WorkerConfig struct {
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	InstanceID  string `env:"INSTANCE_ID"`
	Transport   string `env:"TRANSPORT"    envDefault:"mqtt"`
	ContentType string `env:"CONTENT_TYPE" envDefault:"application/json"`
	BaseTopic   string `env:"BASE_TOPIC"   envDefault:"fl"`
	// WasmFile and WasmImage replace the built-in fibonacci compute with a
	// Wasm module read from disk or pulled from an OCI registry.
	WasmFile  string                `env:"WASM_FILE"`
	WasmImage string                `env:"WASM_IMAGE"`
	Registry  worker.RegistryConfig `envPrefix:"REGISTRY_"`

	Worker     worker.Config
	MQTT       pkgmqtt.Config `envPrefix:"MQTT_"`
	Server     server.Config  `envPrefix:"HTTP_"`
	OTELURL    url.URL        `env:"OTEL_URL"`
	TraceRatio float64        `env:"TRACE_RATIO" envDefault:"0"`
}

// LoadWorkerConfig reads the worker configuration from the environment.
func LoadWorkerConfig() (WorkerConfig, error) {
	cfg := WorkerConfig{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: WorkerEnvPrefix}); err != nil {
		return WorkerConfig{}, err
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = defWorkerPort
	}

	return cfg, nil
}

func StartWorker(ctx context.Context, cancel context.CancelFunc, cfg WorkerConfig) error {
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
		sdktp, err := jaeger.NewProvider(ctx, workerSvcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
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

	computer, closeComputer, err := newComputer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeComputer()

	rt := worker.NewRuntime(cfg.Worker, computer, worker.Sum{}, logger)

	codec, err := fl.CodecFor(cfg.ContentType)
	if err != nil {
		return err
	}

	switch cfg.Transport {
	case TransportMQTT:
		topics := pkgmqtt.NewTopics(cfg.BaseTopic)
		if cfg.MQTT.WillTopic == "" && rt.ID() != "" {
			cfg.MQTT.WillTopic = topics.Status(rt.ID())
		}
		pubsub, err := pkgmqtt.NewPubSub(cfg.MQTT, workerSvcName+"-"+cfg.InstanceID, codec, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize mqtt pubsub: %s", err.Error())
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := pubsub.Disconnect(stopCtx); err != nil {
				logger.Warn("Failed to disconnect from MQTT broker", slog.Any("error", err))
			}
		}()

		g.Go(func() error {
			return worker.Run(ctx, rt, pubsub, topics, codec, logger)
		})
	case TransportHTTP:
		// Tasks arrive on the HTTP task endpoint only.
	default:
		return fmt.Errorf("%w: %q", errUnknownTransport, cfg.Transport)
	}

	hs := httpserver.NewServer(ctx, cancel, workerSvcName, cfg.Server, api.MakeHandler(rt, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, workerSvcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", workerSvcName, err))

		return err
	}

	return nil
}

func newComputer(ctx context.Context, cfg WorkerConfig, logger *slog.Logger) (worker.Computer, func(), error) {
	var (
		wc  *worker.WasmComputer
		err error
	)

	switch {
	case cfg.WasmFile != "":
		wc, err = worker.NewWasmComputerFromFile(ctx, cfg.WasmFile)
	case cfg.WasmImage != "":
		if err := cfg.Registry.Validate(); err != nil {
			return nil, nil, err
		}
		module, ferr := worker.FetchModule(ctx, cfg.Registry, cfg.WasmImage, logger)
		if ferr != nil {
			return nil, nil, ferr
		}
		wc, err = worker.NewWasmComputer(ctx, module)
	default:
		logger.Info("Using built-in fibonacci compute")

		return worker.Fibonacci{}, func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load compute module: %w", err)
	}

	closeFn := func() {
		if err := wc.Close(context.Background()); err != nil {
			logger.Warn("Failed to close compute module", slog.Any("error", err))
		}
	}

	return wc, closeFn, nil
}

func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker [start]",
		Short: "Worker management",
		Long:  `Run a federated worker.`,
	}

	var id string

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start worker",
		Long:  `Start a worker configured from FL_WORKER_* environment variables.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := LoadWorkerConfig()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if id != "" {
				cfg.Worker.ID = id
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartWorker(ctx, cancel, cfg); err != nil {
				logErrorCmd(*cmd, err)
			}
		},
	}

	startCmd.Flags().StringVar(&id, "id", "", "Worker id the coordinator addresses")

	cmd.AddCommand(startCmd)

	return cmd
}
