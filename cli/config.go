package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/absmach/flround"
	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/storage"
	"github.com/absmach/flround/worker"
	"github.com/charmbracelet/huh"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
)

const (
	defConfigFile  = "flround.toml"
	filePermission = 0o644
)

var errConfigExists = errors.New("config file already exists, use --force to overwrite it")

// initAnswers holds the form fields as typed by the user.
type initAnswers struct {
	Name         string
	Clients      string
	Rounds       string
	Level        string
	RoundTimeout string
	MetricKey    string
	Aggregation  string
	Comparator   string
	Storage      string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Name:         flround.DefaultExperiment,
		Clients:      "5",
		Rounds:       "5",
		Level:        strconv.Itoa(flround.DefaultLevel),
		RoundTimeout: "30s",
		MetricKey:    "sum",
		Aggregation:  string(fl.Mean),
		Comparator:   string(fl.Max),
		Storage:      storage.TypeMemory,
	}
}

type initFile struct {
	Experiment  initExperiment  `toml:"experiment"`
	Coordinator initCoordinator `toml:"coordinator"`
	Storage     initStorage     `toml:"storage"`
}

type initExperiment struct {
	Name         string               `toml:"name"`
	InitialState map[string][]float64 `toml:"initial_state"`
}

type initCoordinator struct {
	NumClients   int64  `toml:"num_clients"`
	NumRounds    int64  `toml:"num_rounds"`
	RoundTimeout string `toml:"round_timeout"`
	MetricKey    string `toml:"metric_key"`
	Aggregation  string `toml:"aggregation"`
	Comparator   string `toml:"comparator"`
}

type initStorage struct {
	Type string `toml:"type"`
}

func (a initAnswers) file() (initFile, error) {
	clients, err := strconv.ParseInt(a.Clients, 10, 64)
	if err != nil || clients <= 0 {
		return initFile{}, fmt.Errorf("%w: workers must be a positive integer", fl.ErrInvalidConfig)
	}
	rounds, err := strconv.ParseInt(a.Rounds, 10, 64)
	if err != nil || rounds <= 0 {
		return initFile{}, fmt.Errorf("%w: rounds must be a positive integer", fl.ErrInvalidConfig)
	}
	level, err := strconv.ParseFloat(a.Level, 64)
	if err != nil || level < 0 {
		return initFile{}, fmt.Errorf("%w: level must be a non-negative number", fl.ErrInvalidConfig)
	}
	if _, err := time.ParseDuration(a.RoundTimeout); err != nil {
		return initFile{}, fmt.Errorf("%w: round timeout: %w", fl.ErrInvalidConfig, err)
	}

	return initFile{
		Experiment: initExperiment{
			Name:         a.Name,
			InitialState: map[string][]float64{worker.DefaultParamKey: {level}},
		},
		Coordinator: initCoordinator{
			NumClients:   clients,
			NumRounds:    rounds,
			RoundTimeout: a.RoundTimeout,
			MetricKey:    a.MetricKey,
			Aggregation:  a.Aggregation,
			Comparator:   a.Comparator,
		},
		Storage: initStorage{Type: a.Storage},
	}, nil
}

func writeConfigFile(path string, answers initAnswers, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errConfigExists
	}

	file, err := answers.file()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return os.WriteFile(path, data, filePermission)
}

func askAnswers(answers *initAnswers, accessible bool) error {
	validInt := func(s string) error {
		if n, err := strconv.Atoi(s); err != nil || n <= 0 {
			return errors.New("enter a positive integer")
		}

		return nil
	}
	validLevel := func(s string) error {
		if v, err := strconv.ParseFloat(s, 64); err != nil || v < 0 {
			return errors.New("enter a non-negative number")
		}

		return nil
	}
	validDuration := func(s string) error {
		_, err := time.ParseDuration(s)

		return err
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Experiment name").Value(&answers.Name),
			huh.NewInput().Title("Number of workers").Value(&answers.Clients).Validate(validInt),
			huh.NewInput().Title("Number of rounds").Value(&answers.Rounds).Validate(validInt),
			huh.NewInput().Title("Initial fibonacci level").Value(&answers.Level).Validate(validLevel),
			huh.NewInput().Title("Round timeout").Value(&answers.RoundTimeout).Validate(validDuration),
		),
		huh.NewGroup(
			huh.NewInput().Title("Key metric").Value(&answers.MetricKey),
			huh.NewSelect[string]().
				Title("Aggregation").
				Options(huh.NewOptions(string(fl.Mean), string(fl.Sum), string(fl.Weighted))...).
				Value(&answers.Aggregation),
			huh.NewSelect[string]().
				Title("Best round is the one with the").
				Options(
					huh.NewOption("highest metric", string(fl.Max)),
					huh.NewOption("lowest metric", string(fl.Min)),
				).
				Value(&answers.Comparator),
			huh.NewSelect[string]().
				Title("Round storage").
				Options(huh.NewOptions(storage.TypeMemory, storage.TypeFile, storage.TypeBadger, storage.TypeSQLite, storage.TypePostgres)...).
				Value(&answers.Storage),
		),
	).WithAccessible(accessible)

	return form.Run()
}

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [init|view]",
		Short: "Experiment configuration",
		Long:  `Create and inspect experiment TOML files.`,
	}

	var (
		output     string
		force      bool
		defaults   bool
		accessible bool
	)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create experiment file",
		Long:  `Create an experiment TOML file through an interactive form.`,
		Run: func(cmd *cobra.Command, _ []string) {
			answers := defaultAnswers()
			if !defaults {
				if err := askAnswers(&answers, accessible); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
			}

			if err := writeConfigFile(output, answers, force); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, fmt.Sprintf("Experiment written to %s", output))
		},
	}

	initCmd.Flags().StringVarP(&output, "output", "o", defConfigFile, "Path of the experiment file")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	initCmd.Flags().BoolVar(&defaults, "defaults", false, "Write the defaults without prompting")
	initCmd.Flags().BoolVar(&accessible, "accessible", false, "Use the screen reader friendly form")

	viewCmd := &cobra.Command{
		Use:   "view <file>",
		Short: "View experiment file",
		Long:  `Load an experiment file over the defaults and print the result.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg, err := flround.LoadConfig(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cfg)
		},
	}

	cmd.AddCommand(initCmd, viewCmd)

	return cmd
}
