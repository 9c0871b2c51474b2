package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/storage"
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. A fresh database is stamped
// with storage.SchemaVersion; an existing one must carry the same version.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		db:     db,
		logger: logger,
	}
	if err := b.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction; fn must commit it.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// Update runs fn in a read-write transaction and commits it if fn succeeds.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.WithTx(fn, false)
}

// entry is a pending key/value write.
type entry struct {
	key   []byte
	value []byte
}

// writeChunked writes entries in as few transactions as badger allows,
// committing and starting a new transaction whenever one grows too big.
// The entries are therefore not atomic as a group; callers order them so
// that a partial write is invisible to readers.
func (b *Backend) writeChunked(ctx context.Context, entries []entry) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := tx.Set(e.key, e.value)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = b.db.NewTransaction(true)
			err = tx.Set(e.key, e.value)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// dropPrefixes removes every key under the given prefixes.
func (b *Backend) dropPrefixes(prefixes ...string) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	raw := make([][]byte, len(prefixes))
	for i, p := range prefixes {
		raw[i] = []byte(p)
	}
	return b.db.DropPrefix(raw...)
}

func (b *Backend) checkSchema() error {
	return b.Update(func(tx *badger.Txn) error {
		val, err := getValue(tx, []byte(metaSchemaKey))
		if errors.Is(err, storage.ErrNotFound) {
			empty, err := isEmpty(tx)
			if err != nil {
				return err
			}
			if !empty {
				return fmt.Errorf("%w: data without a schema version", storage.ErrCorruptStore)
			}
			b.logger.Debug("initializing store", "schema", storage.SchemaVersion)
			return tx.Set([]byte(metaSchemaKey), []byte(strconv.Itoa(storage.SchemaVersion)))
		}
		if err != nil {
			return err
		}
		version, convErr := strconv.Atoi(string(val))
		if convErr != nil || version != storage.SchemaVersion {
			return fmt.Errorf("%w: schema version %q, want %d", storage.ErrCorruptStore, val, storage.SchemaVersion)
		}
		return nil
	})
}

func isEmpty(tx *badger.Txn) (bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()
	iter.Rewind()
	return !iter.Valid(), nil
}

// getValue reads a copy of the value stored at key.
// Returns storage.ErrNotFound if the key doesn't exist.
func getValue(tx *badger.Txn, key []byte) ([]byte, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// hasKey reports whether key exists.
func hasKey(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanPrefix calls fn with a copy of every key and value under prefix, in key order.
func scanPrefix(ctx context.Context, tx *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := iter.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

// countPrefix counts keys under prefix without reading values.
func countPrefix(tx *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	n := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		n++
	}
	return n
}

// nextIDs reserves n consecutive IDs from the named counter and returns the first.
// Counters live in ordinary keys so that Import can raise them.
func nextIDs(tx *badger.Txn, name string, n int) (core.ID, error) {
	last, err := readCounter(tx, name)
	if err != nil {
		return 0, err
	}
	if err := tx.Set(makeSequenceKey(name), storage.MarshalID(last+core.ID(n))); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// raiseCounter makes sure the named counter is at least id.
func raiseCounter(tx *badger.Txn, name string, id core.ID) error {
	last, err := readCounter(tx, name)
	if err != nil {
		return err
	}
	if id <= last {
		return nil
	}
	return tx.Set(makeSequenceKey(name), storage.MarshalID(id))
}

func readCounter(tx *badger.Txn, name string) (core.ID, error) {
	val, err := getValue(tx, makeSequenceKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return storage.UnmarshalID(val)
}

// readDimension returns the corpus vector length, 0 if no vector is stored yet.
func readDimension(tx *badger.Txn) (int, error) {
	val, err := getValue(tx, []byte(metaDimKey))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	dim, err := storage.UnmarshalID(val)
	return int(dim), err
}

// claimDimension records n as the corpus dimension, or checks it against
// the recorded one.
func claimDimension(tx *badger.Txn, n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty vector", core.ErrDimensionMismatch)
	}
	dim, err := readDimension(tx)
	if err != nil {
		return err
	}
	switch {
	case dim == 0:
		return tx.Set([]byte(metaDimKey), storage.MarshalID(core.ID(n)))
	case dim != n:
		return fmt.Errorf("%w: got %d, corpus has %d", core.ErrDimensionMismatch, n, dim)
	}
	return nil
}
