package storage

import (
	"fmt"

	"github.com/absmach/flround/pkg/storage/badger"
	"github.com/absmach/flround/pkg/storage/postgres"
	"github.com/absmach/flround/pkg/storage/sqlite"
)

const (
	TypeMemory   = "memory"
	TypeFile     = "file"
	TypeBadger   = "badger"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

type Config struct {
	Type string `env:"TYPE" envDefault:"memory" toml:"type"`

	FileDir string `env:"FILE_DIR" envDefault:"./data/rounds" toml:"file_dir"`

	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/badger" toml:"badger_path"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"./flround.db" toml:"sqlite_path"`

	PostgresHost    string `env:"POSTGRES_HOST"    envDefault:"localhost" toml:"postgres_host"`
	PostgresPort    string `env:"POSTGRES_PORT"    envDefault:"5432"      toml:"postgres_port"`
	PostgresUser    string `env:"POSTGRES_USER"    envDefault:"flround"   toml:"postgres_user"`
	PostgresPass    string `env:"POSTGRES_PASS"    envDefault:"flround"   toml:"postgres_pass"`
	PostgresDB      string `env:"POSTGRES_DB"      envDefault:"flround"   toml:"postgres_db"`
	PostgresSSLMode string `env:"POSTGRES_SSLMODE" envDefault:"disable"   toml:"postgres_sslmode"`
}

func New(cfg Config) (Repository, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return NewInMemoryRepository(), nil
	case TypeFile:
		return NewFileRepository(cfg.FileDir)
	case TypeBadger:
		db, err := badger.NewDatabase(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}

		return badger.NewRoundRepository(db), nil
	case TypeSQLite:
		db, err := sqlite.NewDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		return sqlite.NewRoundRepository(db), nil
	case TypePostgres:
		db, err := postgres.NewDatabase(
			cfg.PostgresHost,
			cfg.PostgresPort,
			cfg.PostgresUser,
			cfg.PostgresPass,
			cfg.PostgresDB,
			cfg.PostgresSSLMode,
		)
		if err != nil {
			return nil, err
		}

		return postgres.NewRoundRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Type)
	}
}
