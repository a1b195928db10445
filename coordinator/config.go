package coordinator

import (
	"fmt"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds both the resend of a task to a worker whose transport
// failed and the re-run of a round that missed quorum.
type RetryPolicy struct {
	MaxRetries uint          `env:"MAX_RETRIES" envDefault:"2"     toml:"max_retries"`
	Backoff    time.Duration `env:"BACKOFF"     envDefault:"500ms" toml:"backoff"`
	MaxBackoff time.Duration `env:"MAX_BACKOFF" envDefault:"10s"   toml:"max_backoff"`
}

type Config struct {
	NumClients   int           `env:"NUM_CLIENTS"   envDefault:"5"   toml:"num_clients"`
	NumRounds    uint64        `env:"NUM_ROUNDS"    envDefault:"5"   toml:"num_rounds"`
	Quorum       int           `env:"QUORUM"        envDefault:"0"   toml:"quorum"`
	RoundTimeout time.Duration `env:"ROUND_TIMEOUT" envDefault:"30s" toml:"round_timeout"`
	RetryPolicy  RetryPolicy   `envPrefix:"RETRY_"                   toml:"retry"`

	MetricKey           string                 `env:"METRIC_KEY"        envDefault:"sum"      toml:"metric_key"`
	MetricCombinator    fl.MetricCombinator    `env:"METRIC_COMBINATOR" envDefault:"mean"     toml:"metric_combinator"`
	AggregationStrategy fl.AggregationStrategy `env:"AGGREGATION"       envDefault:"mean"     toml:"aggregation"`
	Comparator          fl.Comparator          `env:"COMPARATOR"        envDefault:"max"      toml:"comparator"`
	TieBreak            fl.TieBreak            `env:"TIE_BREAK"         envDefault:"earliest" toml:"tie_break"`

	// ProceedOnQuorum closes a round as soon as Quorum results are accepted
	// and cancels the remaining workers.
	ProceedOnQuorum bool `env:"PROCEED_ON_QUORUM" envDefault:"false" toml:"proceed_on_quorum"`
	// MaxConcurrency caps in-flight dispatches per round; 0 means one per worker.
	MaxConcurrency int `env:"MAX_CONCURRENCY" envDefault:"0" toml:"max_concurrency"`

	Hyperparams     map[string]any                  `toml:"hyperparams"`
	WorkerOverrides map[string]map[string][]float64 `toml:"worker_overrides"`
}

func (c Config) Validate() error {
	if c.NumClients < 0 {
		return fmt.Errorf("%w: num_clients must not be negative", fl.ErrInvalidConfig)
	}
	if c.Quorum < 0 {
		return fmt.Errorf("%w: quorum must not be negative", fl.ErrInvalidConfig)
	}
	if c.NumClients > 0 && c.Quorum > c.NumClients {
		return fmt.Errorf("%w: quorum %d exceeds num_clients %d", fl.ErrInvalidConfig, c.Quorum, c.NumClients)
	}
	if c.RoundTimeout < 0 {
		return fmt.Errorf("%w: round_timeout must not be negative", fl.ErrInvalidConfig)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max_concurrency must not be negative", fl.ErrInvalidConfig)
	}
	if c.RetryPolicy.MaxBackoff > 0 && c.RetryPolicy.MaxBackoff < c.RetryPolicy.Backoff {
		return fmt.Errorf("%w: retry max_backoff is below backoff", fl.ErrInvalidConfig)
	}
	if err := c.MetricCombinator.Validate(); err != nil {
		return err
	}
	if _, err := fl.NewAggregator(c.AggregationStrategy); err != nil {
		return err
	}
	if _, err := fl.NewSelector(c.Comparator, c.TieBreak); err != nil {
		return err
	}

	return nil
}

// quorum resolves the configured quorum against the worker set of a run.
func (c Config) quorum(workers int) (int, error) {
	q := c.Quorum
	if q == 0 {
		q = workers
	}
	if q > workers {
		return 0, fmt.Errorf("%w: quorum %d exceeds %d workers", fl.ErrInvalidConfig, q, workers)
	}

	return q, nil
}

func (p RetryPolicy) backOff() backoff.BackOff {
	if p.Backoff <= 0 {
		return &backoff.ZeroBackOff{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.Multiplier = 1.5
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	b.Reset()

	return b
}
