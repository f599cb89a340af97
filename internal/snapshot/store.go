package snapshot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
	"github.com/rcavanagh/sitesentry/internal/kvstore"
	"github.com/rcavanagh/sitesentry/internal/logging"
)

const (
	storeKey = "sitesentry_snapshots"

	// MaxSnapshots bounds the ring. Only the most recent pre-change snapshot
	// is ever consulted, so shallow retention is fine.
	MaxSnapshots = 10
)

// Store persists a bounded FIFO of recent snapshots in the kv store.
// Writers append-then-trim; oldest entries are evicted first.
type Store struct {
	kv *kvstore.Store
	mu sync.Mutex
}

// NewStore creates a snapshot store backed by kv.
func NewStore(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Save assigns an id to snap, persists it and evicts beyond MaxSnapshots.
// The trigger recorded on the snapshot wins over any previously set value.
func (s *Store) Save(trigger string, snap *Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if trigger != "" {
		snap.Trigger = trigger
	}

	all, err := s.load()
	if err != nil {
		return "", err
	}

	all = append(all, *snap)
	if len(all) > MaxSnapshots {
		all = all[len(all)-MaxSnapshots:]
	}

	if err := s.kv.Put(storeKey, all); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	logging.Debugf("[snapshot] saved %s trigger=%s (%d stored)", snap.ID, snap.Trigger, len(all))
	return snap.ID, nil
}

// LatestPreChange returns the most recent snapshot whose trigger marks it as
// a pre-change baseline, or ErrNoBaseline if none is stored.
func (s *Store) LatestPreChange() (*Snapshot, error) {
	return s.latestBaseline("")
}

// LatestPreChangeForSession prefers a baseline captured for the given change
// session, then falls back to the most recent baseline of any session.
func (s *Store) LatestPreChangeForSession(session string) (*Snapshot, error) {
	if session != "" {
		if snap, err := s.latestBaseline(session); err == nil {
			return snap, nil
		}
	}
	return s.latestBaseline("")
}

func (s *Store) latestBaseline(session string) (*Snapshot, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].IsBaseline() {
			continue
		}
		if session != "" && all[i].Session != session {
			continue
		}
		snap := all[i]
		return &snap, nil
	}
	return nil, apperrors.ErrNoBaseline
}

// Get returns the snapshot with the given id.
func (s *Store) Get(id string) (*Snapshot, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			snap := all[i]
			return &snap, nil
		}
	}
	return nil, apperrors.ErrSnapshotNotFound
}

// Latest returns the most recently saved snapshot, or nil if none.
func (s *Store) Latest() (*Snapshot, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	snap := all[len(all)-1]
	return &snap, nil
}

// All returns stored snapshots oldest-first.
func (s *Store) All() ([]Snapshot, error) {
	return s.load()
}

// Count returns the number of stored snapshots.
func (s *Store) Count() (int, error) {
	all, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Store) load() ([]Snapshot, error) {
	var all []Snapshot
	err := s.kv.Get(storeKey, &all)
	if err == kvstore.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	return all, nil
}

// TriggerFor builds the conventional trigger label for a pre-change capture,
// e.g. "pre_update:plugin:woocommerce".
func TriggerFor(changeType string, items []string) string {
	label := "pre_update:" + changeType
	if len(items) > 0 {
		label += ":" + strings.Join(items, ",")
	}
	return label
}
