package sqlstore

import (
	"context"
	"database/sql"
	"flag"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grafana/flamekeeper/pkg/sqlstore/migrations"
)

const TypeSQLite = "sqlite3"

type SQLStore struct {
	config Config
	logger log.Logger

	db  *sql.DB
	orm *gorm.DB
}

type Config struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	const prefix = "storage.sql."
	f.StringVar(&cfg.Type, prefix+"type", TypeSQLite, "Type of the SQL database profiles are stored in.")
	f.StringVar(&cfg.URL, prefix+"url", "flamekeeper.db", "Data source name of the SQL database. Use file::memory:?cache=shared for an in-memory database.")
}

func (cfg *Config) Validate() error {
	if cfg.Type != TypeSQLite {
		return errors.Errorf("unknown db type %q", cfg.Type)
	}
	if cfg.URL == "" {
		return errors.New("db url can't be empty")
	}
	return nil
}

func Open(c Config, logger log.Logger) (*SQLStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := SQLStore{
		config: c,
		logger: log.With(logger, "component", "sqlstore"),
	}
	if err := s.openSQLiteDB(c.URL); err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}
	if err := migrations.Migrate(s.orm); err != nil {
		_ = s.db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	level.Debug(s.logger).Log("msg", "database opened", "type", c.Type, "url", c.URL)
	return &s, nil
}

func (s *SQLStore) DB() *gorm.DB { return s.orm }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) openSQLiteDB(url string) (err error) {
	s.orm, err = gorm.Open(sqlite.Open(url), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return err
	}
	if s.db, err = s.orm.DB(); err != nil {
		return err
	}
	// SQLite allows a single writer.
	s.db.SetMaxOpenConns(1)
	return nil
}
