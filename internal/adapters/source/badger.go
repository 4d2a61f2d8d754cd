// Package source is the authoritative submission log behind the leaderboard.
// Submissions are appended to an embedded BadgerDB and the leaderboard's bulk
// aggregates are computed from it on demand.
//
// The first solve of a (user, problem) is decided once, by Record, in arrival
// order, and the aggregates reuse that decision. A late submission carrying
// an earlier submitted_at therefore never takes the points of a solve that
// was already scored. Latest entity and username follow submitted_at, so a
// rebuild may place a user differently from the live path when clients send
// timestamps out of order.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
)

const (
	prefixLog    = "log:"
	prefixSeen   = "sub:"
	prefixSolved = "solved:"

	maxConflictRetries = 16
)

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM; data is lost on Close.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// GCInterval is the value-log GC period for on-disk databases. 0 disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the garbage ratio that triggers a value-log rewrite.
	GCDiscardRatio float64
	// Logger receives badger's internal log lines. Nil silences them.
	Logger logger.Logger
}

// DefaultConfig is an on-disk configuration with durable writes.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig is used by tests and by deployments that rebuild from clients.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// BadgerSource stores submissions and answers the leaderboard's bulk reads.
type BadgerSource struct {
	db *badger.DB

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	log      logger.Logger
}

// badgerLogger forwards badger's printf-style logging.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, args...))
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*BadgerSource, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required for an on-disk source", ErrOpen)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create directory %s: %w", ErrOpen, cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(badgerLogger{log: log})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	s := &BadgerSource{db: db, log: log}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops value-log GC and closes the database.
func (s *BadgerSource) Close() error {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
	})
	return s.db.Close()
}

func (s *BadgerSource) runGC(interval time.Duration, ratio float64) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Warn(context.Background(), "value log gc failed", logger.Error(err))
			}
		}
	}
}

// Record appends sub to the log. It fails with ErrDuplicate when a
// submission with the same id was recorded before. FirstSolve reports
// whether this is the user's first accepted submission for the problem.
func (s *BadgerSource) Record(ctx context.Context, sub model.Submission) (model.RecordResult, error) {
	if sub.ID == "" || sub.UserID == "" || sub.ProblemID == "" {
		return model.RecordResult{}, ErrInvalidSubmission
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	value, err := json.Marshal(sub)
	if err != nil {
		return model.RecordResult{}, fmt.Errorf("encode submission %s: %w", sub.ID, err)
	}

	var res model.RecordResult
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.RecordResult{}, err
		}
		res = model.RecordResult{}
		err = s.db.Update(func(txn *badger.Txn) error {
			return recordTxn(txn, sub, value, &res)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return model.RecordResult{}, err
		}
		return model.RecordResult{}, fmt.Errorf("record submission %s: %w", sub.ID, err)
	}
	return res, nil
}

func recordTxn(txn *badger.Txn, sub model.Submission, value []byte, res *model.RecordResult) error {
	seen := []byte(prefixSeen + sub.ID)
	switch _, err := txn.Get(seen); {
	case err == nil:
		return ErrDuplicate
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}

	logKey := logKey(sub)
	if err := txn.Set(logKey, value); err != nil {
		return err
	}
	if err := txn.Set(seen, logKey); err != nil {
		return err
	}
	if !sub.Accepted {
		return nil
	}

	solved := []byte(prefixSolved + sub.UserID + "\x00" + sub.ProblemID)
	switch _, err := txn.Get(solved); {
	case err == nil:
		return nil
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}
	res.FirstSolve = true
	return txn.Set(solved, []byte(sub.ID))
}

// logKey orders the log by submission time, then id.
func logKey(sub model.Submission) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixLog, sub.SubmittedAt.UnixNano(), sub.ID))
}

// Count returns the number of recorded submissions.
func (s *BadgerSource) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixSeen)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// eachTxn walks the log in submission-time order.
func eachTxn(ctx context.Context, txn *badger.Txn, fn func(model.Submission)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixLog)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var sub model.Submission
		err := it.Item().Value(func(v []byte) error {
			return json.Unmarshal(v, &sub)
		})
		if err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		fn(sub)
	}
	return nil
}

// firstSolvesTxn returns the set of submission ids that Record reported as
// first solves.
func firstSolvesTxn(ctx context.Context, txn *badger.Txn) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixSolved)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", it.Item().Key(), err)
		}
		out[string(id)] = struct{}{}
	}
	return out, nil
}
