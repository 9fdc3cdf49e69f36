// Package storage selects and opens a store.Store backend from configuration.
package storage

import (
	"context"
	"slices"

	"github.com/openagenda-tools/uniqloc/internal/storage/memory"
	"github.com/openagenda-tools/uniqloc/internal/storage/postgres"
	"github.com/openagenda-tools/uniqloc/internal/storage/redisstore"
	"github.com/openagenda-tools/uniqloc/internal/storage/sqlite"
	"github.com/openagenda-tools/uniqloc/internal/storage/yamlfile"
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Drivers lists every supported driver name.
var Drivers = []string{DriverMemory, DriverFile, DriverSQLite, DriverPostgres, DriverRedis}

// Config selects a backend.
type Config struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// DefaultConfig returns the YAML file store in the working directory.
func DefaultConfig() Config {
	return Config{Driver: constants.DefaultStoreDriver, DSN: constants.DefaultStorePath}
}

// Validate checks the driver name and that a DSN is present when needed.
func (c Config) Validate() error {
	if !slices.Contains(Drivers, c.Driver) {
		return errors.NewValidationError("store.driver", c.Driver, "must be one of memory, file, sqlite, postgres, redis")
	}
	if c.Driver != DriverMemory && c.DSN == "" {
		return errors.NewValidationError("store.dsn", c.DSN, "required for driver "+c.Driver)
	}
	return nil
}

// Open returns the backend described by cfg.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("store", err.Error(), err)
	}

	switch cfg.Driver {
	case DriverMemory:
		return memory.New(), nil
	case DriverFile:
		return yamlfile.Open(cfg.DSN)
	case DriverSQLite:
		return sqlite.Open(ctx, cfg.DSN)
	case DriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	default:
		return redisstore.Open(ctx, cfg.DSN)
	}
}
