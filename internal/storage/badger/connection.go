package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// maxWriteRetries bounds how often a failed store write is retried before surfacing
const maxWriteRetries = 3

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// NewBadgerDB creates a new Badger database connection
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	// Ensure the directory exists
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	store, err := badgerhold.Open(storeOptions(config.Path))
	if err != nil {
		logger.Error().Err(err).Str("path", config.Path).Msg("BadgerDB: Failed to open database")
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// storeOptions returns badgerhold options for a store in dir.
// Records are JSON encoded because job parameters hold arbitrary nested values.
func storeOptions(dir string) badgerhold.Options {
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // Disable default badger logger to use arbor
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal
	return options
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

// retryWrite runs a store write, retrying transient failures with exponential backoff.
// Lifecycle refusals are returned at once without retrying.
func (b *BadgerDB) retryWrite(ctx context.Context, op string, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxWriteRetries), ctx)

	err := backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		if b.logger != nil {
			b.logger.Warn().Err(err).Str("op", op).Dur("retry_in", next).Msg("Store write failed, retrying")
		}
	})
	if err != nil {
		if isPermanent(err) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func isPermanent(err error) bool {
	for _, target := range []error{
		interfaces.ErrJobNotFound,
		interfaces.ErrNotFound,
		interfaces.ErrJobActive,
		interfaces.ErrNotClaimable,
		interfaces.ErrRetryCeiling,
		interfaces.ErrNotRetryable,
		interfaces.ErrInvalidTransition,
		badgerhold.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
