package selection

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"showroom/internal/catalog"
	"showroom/internal/changelog"
	"showroom/internal/identity"
	"showroom/internal/manifest"
	"showroom/internal/metrics"
	"showroom/internal/snapshot"
	"showroom/internal/state"
)

// ErrUnknownKey is returned by Adjust for keys outside the current catalog.
var ErrUnknownKey = errors.New("selection: unknown key")

// SequenceSource reports the most recently issued catalog fetch sequence.
type SequenceSource interface {
	Latest() uint64
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Store) { s.metrics = m }
}

func WithChangelog(w changelog.Writer) Option {
	return func(s *Store) {
		if w != nil {
			s.changes = w
		}
	}
}

// WithSequence makes Reconcile discard snapshots that are not the latest
// fetch issued by src.
func WithSequence(src SequenceSource) Option {
	return func(s *Store) { s.seqs = src }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single owner of the selection. Every method takes the lock for
// its whole duration, so mutations are applied one at a time.
type Store struct {
	mu sync.Mutex

	backend state.Backend
	changes changelog.Writer
	metrics *metrics.Registry
	log     *zap.Logger
	seqs    SequenceSource
	now     func() time.Time

	sel     Map
	groups  []catalog.Group
	valid   map[string]struct{} // nil until the first snapshot is applied
	applied uint64
	lastSeq int64
}

// Open loads the durable selection. Missing or unreadable state yields an
// empty selection; Open never fails.
func Open(backend state.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		changes: changelog.Discard,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	m, err := backend.Load()
	switch {
	case err == nil:
		s.sel = clampAll(Map(m))
	case errors.Is(err, state.ErrNotFound):
		s.sel = Map{}
	default:
		s.log.Warn("selection state unreadable, starting empty", zap.Error(err))
		if s.metrics != nil {
			s.metrics.LoadFallbacks.Inc()
		}
		s.sel = Map{}
	}
	s.observe()
	return s
}

// Reconcile applies a catalog snapshot: the selection's key set becomes the
// snapshot's valid keys. A snapshot that is not the latest issued fetch, or
// older than the one already applied, is discarded and false is returned.
func (s *Store) Reconcile(snap catalog.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seqs != nil && snap.Seq != s.seqs.Latest() {
		s.discardStale(snap.Seq)
		return false
	}
	if s.valid != nil && snap.Seq < s.applied {
		s.discardStale(snap.Seq)
		return false
	}

	keys := identity.ValidKeys(snap.Groups)
	prev := s.sel
	next := Reconcile(keys, prev)

	dropped := 0
	for _, k := range prev.Keys() {
		old := prev[k]
		q, ok := next[k]
		switch {
		case !ok:
			dropped++
			s.appendDelta(k, changelog.OpDrop, 0)
		case q != old:
			s.appendDelta(k, changelog.OpSet, q)
		}
	}

	s.sel = next
	s.groups = snap.Groups
	s.valid = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s.valid[k] = struct{}{}
	}
	s.applied = snap.Seq
	s.persist()

	if s.metrics != nil {
		s.metrics.Reconciles.Inc()
		s.metrics.DroppedKeys.Add(float64(dropped))
	}
	s.observe()
	s.log.Debug("selection reconciled",
		zap.Uint64("seq", snap.Seq),
		zap.Int("keys", len(keys)),
		zap.Int("dropped", dropped))
	return true
}

func (s *Store) discardStale(seq uint64) {
	s.log.Info("discarding superseded catalog fetch",
		zap.Uint64("seq", seq),
		zap.Uint64("applied", s.applied))
	if s.metrics != nil {
		s.metrics.StaleFetches.Inc()
	}
}

// Adjust changes the quantity of key by delta within [0, MaxQuantity] and
// returns the resulting quantity and whether it changed.
func (s *Store) Adjust(key string, delta int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		return 0, false, fmt.Errorf("%w: empty key", ErrUnknownKey)
	}
	if s.valid != nil {
		if _, ok := s.valid[key]; !ok {
			return 0, false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
	}

	next, changed := SetQuantity(s.sel, key, delta)
	if !changed {
		return next[key], false, nil
	}
	s.sel = next
	s.appendDelta(key, changelog.OpSet, next[key])
	s.persist()
	if s.metrics != nil {
		s.metrics.Adjustments.Inc()
	}
	s.observe()
	return next[key], true, nil
}

// Reset clears the selection after an order is confirmed. The durable entry
// is removed; in memory every currently valid key is kept at 0.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Drain returns the current selection and resets the store in one step. When
// nothing is selected the store is left untouched and ok is false.
func (s *Store) Drain() (m Map, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.Total() == 0 {
		return s.sel.Copy(), false
	}
	m = s.sel.Copy()
	s.resetLocked()
	return m, true
}

func (s *Store) resetLocked() {
	cleared := make(Map, len(s.valid))
	for k := range s.valid {
		cleared[k] = 0
	}
	s.sel = cleared
	s.appendDelta(changelog.ResetKey, changelog.OpReset, 0)
	if err := s.backend.Clear(); err != nil {
		s.log.Warn("clear selection state", zap.Error(err))
		if s.metrics != nil {
			s.metrics.PersistFailures.Inc()
		}
	}
	s.observe()
}

// Selection returns a copy of the current selection.
func (s *Store) Selection() Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Copy()
}

// Groups returns the groups of the last applied snapshot.
func (s *Store) Groups() []catalog.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Group(nil), s.groups...)
}

// Applied returns the fetch sequence of the last applied snapshot and whether
// any snapshot has been applied.
func (s *Store) Applied() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied, s.valid != nil
}

// Checkpoint writes the selection under a fresh snapshot id and publishes a
// manifest for it. The manifest's LastSeq is reserved from the changelog
// sequence, so every later delta replays on top of the snapshot.
func (s *Store) Checkpoint(snap snapshot.Snapshotter, pub manifest.Publisher) (manifest.Manifest, error) {
	s.mu.Lock()
	sel := s.sel.Copy()
	seq := s.nextSeq()
	s.mu.Unlock()

	id := uuid.NewString()
	if err := snap.WriteSnapshot(id, sel); err != nil {
		return manifest.Manifest{}, fmt.Errorf("write snapshot: %w", err)
	}
	if err := pub.PublishLatest(id, seq); err != nil {
		return manifest.Manifest{}, fmt.Errorf("publish manifest: %w", err)
	}
	s.log.Info("selection checkpoint",
		zap.String("snapshot_id", id),
		zap.Int64("last_seq", seq),
		zap.Int("keys", len(sel)))
	return manifest.Manifest{SnapshotID: id, LastSeq: seq, CreatedAtEpochSecond: s.now().Unix()}, nil
}

// nextSeq returns a changelog sequence that is strictly increasing within the
// process and, being clock based, larger than sequences from earlier runs.
func (s *Store) nextSeq() int64 {
	n := s.now().UnixNano()
	if n <= s.lastSeq {
		n = s.lastSeq + 1
	}
	s.lastSeq = n
	return n
}

func (s *Store) appendDelta(key string, op changelog.Op, qty int) {
	seq := s.nextSeq()
	d := changelog.Delta{Key: key, Seq: seq, Op: op, Qty: qty, TS: s.now().Unix()}
	if err := s.changes.Append(d); err != nil {
		s.log.Warn("append changelog",
			zap.String("key", key),
			zap.String("op", string(op)),
			zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ChangelogAppended.Inc()
	}
}

func (s *Store) persist() {
	if err := s.backend.Save(s.sel); err != nil {
		s.log.Warn("save selection state", zap.Error(err))
		if s.metrics != nil {
			s.metrics.PersistFailures.Inc()
		}
	}
}

func (s *Store) observe() {
	if s.metrics != nil {
		s.metrics.SelectedUnits.Set(float64(s.sel.Total()))
	}
}
