// Package checkpoint persists working-dataset snapshots for crash recovery.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/event"
)

// ErrNoCheckpoint is returned by Restore when the directory holds no
// snapshots.
var ErrNoCheckpoint = errors.New("no checkpoint available")

const (
	filePrefix = "checkpoint_"
	fileSuffix = ".json"
	// stampLayout sorts lexicographically by recency.
	stampLayout = "20060102T150405.000000000"
)

// Store writes timestamped dataset snapshots into a directory and retains
// only the most recent ones.
type Store struct {
	dir    string
	keep   int
	logger *zap.Logger
	seq    atomic.Int64
}

// NewStore creates the checkpoint directory if needed and returns a Store
// retaining keep snapshots per save.
func NewStore(dir string, keep int, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if keep <= 0 {
		return nil, fmt.Errorf("keep must be > 0")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, keep: keep, logger: logger}, nil
}

// Save durably writes a new snapshot whose name sorts after all prior
// names, then prunes old snapshots. It returns the written file path.
func (s *Store) Save(snapshot map[string][]event.Record) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	name := s.nextName(time.Now())
	path := filepath.Join(s.dir, name)
	if err := event.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Info("checkpoint saved", zap.String("path", path))
	if err := s.Prune(); err != nil {
		// A failed prune never invalidates the snapshot just written.
		s.logger.Warn("checkpoint prune failed", zap.Error(err))
	}
	return path, nil
}

// Restore loads the most recent snapshot as a fresh Dataset, or
// ErrNoCheckpoint if none exists.
func (s *Store) Restore() (*event.Dataset, error) {
	names, err := s.list()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoCheckpoint
	}
	latest := filepath.Join(s.dir, names[len(names)-1])
	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", latest, err)
	}
	ds, err := event.DecodeDataset(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", latest, err)
	}
	s.logger.Info("checkpoint restored", zap.String("path", latest))
	return ds, nil
}

// Prune deletes all but the keep most-recently-named snapshots.
func (s *Store) Prune() error {
	names, err := s.list()
	if err != nil {
		return err
	}
	if len(names) <= s.keep {
		return nil
	}
	for _, name := range names[:len(names)-s.keep] {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove snapshot %s: %w", path, err)
		}
		s.logger.Info("checkpoint pruned", zap.String("path", path))
	}
	return nil
}

// list returns snapshot file names sorted oldest first.
func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// nextName builds a snapshot name that sorts after every prior one: a
// nanosecond UTC stamp plus an in-process sequence for same-instant saves.
func (s *Store) nextName(now time.Time) string {
	seq := s.seq.Add(1)
	return fmt.Sprintf("%s%s_%06d%s", filePrefix, now.UTC().Format(stampLayout), seq, fileSuffix)
}
