// Package runstore keeps a record of completed training runs in BadgerDB.
package runstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/nn"
)

var (
	// ErrNotFound is returned by Get for an unknown run id.
	ErrNotFound = errors.New("run not found")

	// ErrNoStore is returned when a read-only store is opened on a directory
	// that has never been written.
	ErrNoStore = errors.New("no run store")
)

const keyPrefix = "run/"

// Run describes one successful training call.
type Run struct {
	ID          string     `msgpack:"id"`
	StartedAt   time.Time  `msgpack:"started_at"`
	FinishedAt  time.Time  `msgpack:"finished_at"`
	DatasetRoot string     `msgpack:"dataset_root"`
	Labels      []string   `msgpack:"labels"`
	Epochs      int        `msgpack:"epochs"`
	BatchSize   int        `msgpack:"batch_size"`
	TrainSize   int        `msgpack:"train_size"`
	ValSize     int        `msgpack:"val_size"`
	Accuracy    float64    `msgpack:"accuracy"`
	Loss        float64    `msgpack:"loss"`
	History     nn.History `msgpack:"history"`
	Artifact    string     `msgpack:"artifact"`
}

// Options configures the store.
type Options struct {
	// Dir holds the badger files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory; used by tests.
	InMemory bool

	// ReadOnly takes a shared lock, so any number of readers can list runs
	// while no writer holds the directory.
	ReadOnly bool
}

// Store is a BadgerDB-backed run history. Keys sort by start time.
type Store struct {
	db     *badger.DB
	logger logging.Logger
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("runstore: Dir is required for on-disk mode")
	}

	if opts.ReadOnly && !opts.InMemory {
		if _, err := os.Stat(filepath.Join(opts.Dir, badger.ManifestFilename)); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoStore, opts.Dir)
		}
	}

	logger := logging.WithFields(logging.Fields{
		"component": "runstore",
	})

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	switch {
	case opts.InMemory:
		dbOpts = dbOpts.WithInMemory(true)
	case opts.ReadOnly:
		dbOpts = dbOpts.WithReadOnly(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// NewID returns a fresh run id.
func NewID() string {
	return uuid.NewString()
}

func runKey(r *Run) []byte {
	return fmt.Appendf(nil, "%s%020d/%s", keyPrefix, r.StartedAt.UnixNano(), r.ID)
}

// Put stores a run. An empty ID is filled in.
func (s *Store) Put(_ context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = NewID()
	}

	value, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(r), value)
	})
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", r.ID, err)
	}

	s.logger.Debug("Stored training run", logging.Fields{
		"run_id":   r.ID,
		"accuracy": r.Accuracy,
	})
	return nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	var runs []*Run

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration starts from the largest key under the prefix
		seek := append([]byte(keyPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			r, err := decodeRun(it.Item())
			if err != nil {
				return err
			}
			runs = append(runs, r)

			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	runs, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Recorder writes runs to an on-disk store that it holds open only for the
// duration of each Put, leaving the directory free for readers in between.
type Recorder struct {
	opts Options
}

// NewRecorder returns a Recorder for the store in dir.
func NewRecorder(dir string) *Recorder {
	return &Recorder{opts: Options{Dir: dir}}
}

// Put opens the store, stores r and closes the store again.
func (rec *Recorder) Put(ctx context.Context, r *Run) (err error) {
	s, err := Open(rec.opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close run store: %w", cerr)
		}
	}()
	return s.Put(ctx, r)
}

func decodeRun(item *badger.Item) (*Run, error) {
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var r Run
	if err := msgpack.Unmarshal(value, &r); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", item.Key(), err)
	}
	return &r, nil
}

// badgerLogger routes badger output through the service logger. Info and
// debug chatter is demoted to debug.
type badgerLogger struct {
	logger logging.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.logger.Error(errors.New(strings.TrimSpace(fmt.Sprintf(f, v...))), "Badger error")
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Infof(f string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Debugf(f string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
