package flround

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/absmach/flround/coordinator"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/storage"
	"github.com/absmach/flround/worker"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

const (
	DefaultExperiment = "fibonacci_fl"
	DefaultLevel      = 10
)

// Config is the experiment file. Every key is optional; missing keys keep
// their defaults.
type Config struct {
	Experiment  Experiment         `toml:"experiment"`
	Coordinator coordinator.Config `toml:"coordinator"`
	Worker      worker.Config      `toml:"worker"`
	Storage     storage.Config     `toml:"storage"`
}

type Experiment struct {
	Name         string               `toml:"name"`
	InitialState map[string][]float64 `toml:"initial_state"`
}

func (e Experiment) State() (fl.GlobalState, error) {
	state := fl.NewGlobalState(e.InitialState)
	if err := state.Validate(); err != nil {
		return fl.GlobalState{}, err
	}

	return state, nil
}

// DefaultConfig returns the defaults declared on the configuration structs,
// ignoring the process environment.
func DefaultConfig() (Config, error) {
	cfg := Config{
		Experiment: Experiment{
			Name:         DefaultExperiment,
			InitialState: map[string][]float64{worker.DefaultParamKey: {DefaultLevel}},
		},
	}

	opts := env.Options{Environment: map[string]string{}}
	for _, target := range []any{&cfg.Coordinator, &cfg.Worker, &cfg.Storage} {
		if err := env.ParseWithOptions(target, opts); err != nil {
			return Config{}, fmt.Errorf("error loading defaults: %w", err)
		}
	}

	return cfg, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var file Config
	if err := tree.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	overlay(reflect.ValueOf(&cfg).Elem(), reflect.ValueOf(file), tree, nil)

	if err := cfg.Coordinator.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}
	if _, err := cfg.Experiment.State(); err != nil {
		return nil, fmt.Errorf("invalid initial state: %w", err)
	}

	return &cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// overlay copies into dst the fields of src whose keys appear in tree.
func overlay(dst, src reflect.Value, tree *toml.Tree, path []string) {
	for i := 0; i < dst.NumField(); i++ {
		field := dst.Type().Field(i)
		key := field.Tag.Get("toml")
		if key == "" || key == "-" {
			continue
		}
		keyPath := append(append([]string(nil), path...), key)
		if !tree.HasPath(keyPath) {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != durationType {
			overlay(dst.Field(i), src.Field(i), tree, keyPath)

			continue
		}
		dst.Field(i).Set(src.Field(i))
	}
}
