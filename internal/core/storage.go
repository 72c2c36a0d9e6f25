package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"carboncore/internal/blob"
	"carboncore/internal/infra/persistence/badger"
	"carboncore/internal/infra/persistence/memory"
	"carboncore/internal/infra/persistence/postgres"
	"carboncore/internal/infra/persistence/sqlite"
	"carboncore/internal/infra/timeseries/influx"
	"carboncore/pkg/domain"
)

// StorageDriver names a result store backend.
type StorageDriver string

// Supported storage drivers.
const (
	StorageMemory   StorageDriver = "memory"
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
	StorageBadger   StorageDriver = "badger"
	StorageBlob     StorageDriver = "blob"
)

// StorageConfig selects and configures the result store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	BadgerPath  string
	// Influx, when its URL is set, mirrors every saved result as time-series points.
	Influx influx.Config
}

// StorageConfigFromEnv reads CARBONCORE_STORAGE_DRIVER and the driver
// specific variables. The driver defaults to memory.
func StorageConfigFromEnv() StorageConfig {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(os.Getenv("CARBONCORE_STORAGE_DRIVER"))))
	if driver == "" {
		driver = StorageMemory
	}
	cfg := StorageConfig{
		Driver:      driver,
		SQLitePath:  os.Getenv("CARBONCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("CARBONCORE_POSTGRES_DSN"),
		BadgerPath:  os.Getenv("CARBONCORE_BADGER_PATH"),
	}
	if os.Getenv("CARBONCORE_INFLUX_URL") != "" {
		cfg.Influx = influx.ConfigFromEnv()
	}
	return cfg
}

// OpenResultStore opens the store selected by the environment.
func OpenResultStore(ctx context.Context) (domain.ResultStore, error) {
	return OpenResultStoreWith(ctx, StorageConfigFromEnv())
}

// OpenResultStoreWith opens the store described by cfg. Callers close the
// returned store through CloseStore.
func OpenResultStoreWith(ctx context.Context, cfg StorageConfig) (domain.ResultStore, error) {
	primary, err := openPrimary(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Influx.URL == "" {
		return primary, nil
	}
	return NewMultiStore(primary, influx.New(cfg.Influx)), nil
}

func openPrimary(ctx context.Context, cfg StorageConfig) (domain.ResultStore, error) {
	switch cfg.Driver {
	case "", StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	case StorageBadger:
		return badger.NewStore(cfg.BadgerPath)
	case StorageBlob:
		store, err := blob.Open(ctx)
		if err != nil {
			return nil, err
		}
		return blob.NewArchive(store), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// MultiStore saves every result to a primary store and a list of mirrors.
// Reads are served by the primary.
type MultiStore struct {
	primary domain.ResultStore
	mirrors []domain.ResultStore
}

// NewMultiStore combines primary with mirrors.
func NewMultiStore(primary domain.ResultStore, mirrors ...domain.ResultStore) *MultiStore {
	return &MultiStore{primary: primary, mirrors: mirrors}
}

// Save writes the result to the primary, then to each mirror.
func (m *MultiStore) Save(ctx context.Context, result domain.RealizationResult) error {
	if err := m.primary.Save(ctx, result); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Save(ctx, result); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
	}
	return nil
}

// List reads from the primary.
func (m *MultiStore) List(ctx context.Context, runID string) ([]domain.RealizationResult, error) {
	return m.primary.List(ctx, runID)
}

// Close closes every store that holds resources.
func (m *MultiStore) Close() error {
	var errs []error
	for _, s := range append([]domain.ResultStore{m.primary}, m.mirrors...) {
		if err := CloseStore(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseStore closes the store when it holds resources.
func CloseStore(store domain.ResultStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
