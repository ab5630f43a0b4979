package selection

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom/internal/catalog"
	"showroom/internal/changelog"
	"showroom/internal/identity"
	"showroom/internal/manifest"
	"showroom/internal/metrics"
	"showroom/internal/snapshot"
	"showroom/internal/state"
)

func testGroups() []catalog.Group {
	return catalog.GroupByVariant([]catalog.Record{
		{
			ID:          "BK-1",
			VehicleName: "Activa 6G",
			Variant:     "Activa",
			OnRoadPrice: catalog.NewAmount(decimal.NewFromInt(80000)),
			Colors:      []string{"Red", "Blue"},
		},
		{VehicleName: "Shine", Variant: "Shine", OnRoadPrice: catalog.ParseAmount("₹95,000")},
	})
}

// keys returns red, blue, shine keys of testGroups.
func testKeys(t *testing.T) (string, string, string) {
	t.Helper()
	keys := identity.ValidKeys(testGroups())
	require.Len(t, keys, 3)
	return keys[0], keys[1], keys[2]
}

type recordingLog struct {
	mu     sync.Mutex
	deltas []changelog.Delta
}

func (r *recordingLog) Append(d changelog.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, d)
	return nil
}

func (r *recordingLog) all() []changelog.Delta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]changelog.Delta(nil), r.deltas...)
}

type failingBackend struct{}

func (failingBackend) Load() (map[string]int, error) { return nil, errors.New("disk gone") }
func (failingBackend) Save(map[string]int) error      { return errors.New("disk gone") }
func (failingBackend) Clear() error                   { return errors.New("disk gone") }

type fixedSeq uint64

func (f fixedSeq) Latest() uint64 { return uint64(f) }

func TestOpen_EmptyBackend(t *testing.T) {
	s := Open(state.NewInMemoryBackend())
	assert.Empty(t, s.Selection())
	_, applied := s.Applied()
	assert.False(t, applied)
}

func TestOpen_CorruptStateFallsBackToEmpty(t *testing.T) {
	b := state.NewInMemoryBackend()
	b.SetRaw([]byte(`{"k": "two"`))
	reg := metrics.NewRegistry()

	s := Open(b, WithMetrics(reg))
	assert.Empty(t, s.Selection())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.LoadFallbacks))
}

func TestOpen_UnreadableBackend(t *testing.T) {
	s := Open(failingBackend{})
	assert.Empty(t, s.Selection())
}

func TestOpen_ClampsStoredValues(t *testing.T) {
	b := state.NewInMemoryBackend()
	require.NoError(t, b.Save(map[string]int{"a": 12, "b": -1, "c": 3}))
	s := Open(b)
	assert.Equal(t, Map{"a": MaxQuantity, "b": 0, "c": 3}, s.Selection())
}

func TestStore_ReconcileCarriesAndDrops(t *testing.T) {
	red, blue, shine := testKeys(t)
	b := state.NewInMemoryBackend()
	require.NoError(t, b.Save(map[string]int{red: 2, "v=Gone#p=0": 4}))
	log := &recordingLog{}

	s := Open(b, WithChangelog(log))
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))

	assert.Equal(t, Map{red: 2, blue: 0, shine: 0}, s.Selection())

	saved, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{red: 2, blue: 0, shine: 0}, saved)

	deltas := log.all()
	require.Len(t, deltas, 1)
	assert.Equal(t, changelog.OpDrop, deltas[0].Op)
	assert.Equal(t, "v=Gone#p=0", deltas[0].Key)

	seq, applied := s.Applied()
	assert.True(t, applied)
	assert.Equal(t, uint64(1), seq)
	assert.Len(t, s.Groups(), 2)
}

func TestStore_ReconcileDiscardsSupersededFetch(t *testing.T) {
	reg := metrics.NewRegistry()
	s := Open(state.NewInMemoryBackend(), WithSequence(fixedSeq(2)), WithMetrics(reg))

	assert.False(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))
	assert.Empty(t, s.Selection())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.StaleFetches))

	assert.True(t, s.Reconcile(catalog.Snapshot{Seq: 2, Groups: testGroups()}))
	assert.Len(t, s.Selection(), 3)
}

func TestStore_ReconcileNeverGoesBackwards(t *testing.T) {
	s := Open(state.NewInMemoryBackend())
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 5, Groups: testGroups()}))
	assert.False(t, s.Reconcile(catalog.Snapshot{Seq: 4, Groups: nil}))
	assert.Len(t, s.Selection(), 3)
}

func TestStore_ReconcileIsIdempotent(t *testing.T) {
	red, _, _ := testKeys(t)
	s := Open(state.NewInMemoryBackend())
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))
	_, _, err := s.Adjust(red, 3)
	require.NoError(t, err)
	before := s.Selection()

	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))
	assert.Equal(t, before, s.Selection())
}

func TestStore_AdjustBoundedAndLogged(t *testing.T) {
	red, _, _ := testKeys(t)
	b := state.NewInMemoryBackend()
	log := &recordingLog{}
	reg := metrics.NewRegistry()
	s := Open(b, WithChangelog(log), WithMetrics(reg))
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))

	for i := 0; i < 7; i++ {
		_, _, err := s.Adjust(red, 1)
		require.NoError(t, err)
	}
	q, changed, err := s.Adjust(red, 1)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, MaxQuantity, q)

	deltas := log.all()
	require.Len(t, deltas, MaxQuantity)
	for i, d := range deltas {
		assert.Equal(t, changelog.OpSet, d.Op)
		assert.Equal(t, i+1, d.Qty)
		if i > 0 {
			assert.Greater(t, d.Seq, deltas[i-1].Seq)
		}
	}

	saved, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, saved[red])
	assert.Equal(t, float64(MaxQuantity), testutil.ToFloat64(reg.SelectedUnits))
	assert.Equal(t, float64(MaxQuantity), testutil.ToFloat64(reg.Adjustments))
}

func TestStore_AdjustUnknownKey(t *testing.T) {
	s := Open(state.NewInMemoryBackend())

	// Before any catalog is applied keys are not checked.
	_, changed, err := s.Adjust("v=Early#p=0", 1)
	require.NoError(t, err)
	assert.True(t, changed)

	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))
	_, _, err = s.Adjust("v=Early#p=0", 1)
	require.ErrorIs(t, err, ErrUnknownKey)

	_, _, err = s.Adjust("", 1)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestStore_Reset(t *testing.T) {
	red, blue, shine := testKeys(t)
	b := state.NewInMemoryBackend()
	log := &recordingLog{}
	s := Open(b, WithChangelog(log))
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))
	_, _, err := s.Adjust(red, 2)
	require.NoError(t, err)

	s.Reset()

	assert.Equal(t, Map{red: 0, blue: 0, shine: 0}, s.Selection())
	_, err = b.Load()
	require.ErrorIs(t, err, state.ErrNotFound)

	deltas := log.all()
	last := deltas[len(deltas)-1]
	assert.Equal(t, changelog.OpReset, last.Op)
	assert.Equal(t, changelog.ResetKey, last.Key)
}

func TestStore_PersistFailureKeepsMemoryAuthoritative(t *testing.T) {
	reg := metrics.NewRegistry()
	s := Open(failingBackend{}, WithMetrics(reg))
	q, changed, err := s.Adjust("k", 2)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, q)
	assert.Equal(t, 2, s.Selection()["k"])
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.PersistFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.LoadFallbacks))
}

func TestStore_SurvivesReopen(t *testing.T) {
	red, _, _ := testKeys(t)
	b, err := state.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	s := Open(b)
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))
	_, _, err = s.Adjust(red, 3)
	require.NoError(t, err)

	again := Open(b)
	assert.Equal(t, 3, again.Selection()[red])
}

func TestStore_SelectionIsACopy(t *testing.T) {
	s := Open(state.NewInMemoryBackend())
	_, _, err := s.Adjust("k", 1)
	require.NoError(t, err)
	m := s.Selection()
	m["k"] = 5
	assert.Equal(t, 1, s.Selection()["k"])
}

func TestStore_ConcurrentAdjustStaysBounded(t *testing.T) {
	red, blue, _ := testKeys(t)
	s := Open(state.NewInMemoryBackend())
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := red
				if (i+j)%2 == 0 {
					key = blue
				}
				delta := 1
				if j%3 == 0 {
					delta = -1
				}
				_, _, err := s.Adjust(key, delta)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for _, q := range s.Selection() {
		assert.GreaterOrEqual(t, q, 0)
		assert.LessOrEqual(t, q, MaxQuantity)
	}
}

func TestStore_Checkpoint(t *testing.T) {
	red, _, _ := testKeys(t)
	dir := t.TempDir()
	log := &recordingLog{}
	s := Open(state.NewInMemoryBackend(), WithChangelog(log))
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))
	_, _, err := s.Adjust(red, 2)
	require.NoError(t, err)

	snaps := snapshot.NewFilesystemSnapshotter(dir)
	mf := manifest.NewFilesystemManifest(dir)
	m, err := s.Checkpoint(snaps, mf)
	require.NoError(t, err)
	require.NotEmpty(t, m.SnapshotID)

	got, err := snaps.ReadSnapshot(m.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int(s.Selection()), got)

	published, err := mf.ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, m.SnapshotID, published.SnapshotID)
	for _, d := range log.all() {
		assert.Less(t, d.Seq, published.LastSeq)
	}

	_, _, err = s.Adjust(red, 1)
	require.NoError(t, err)
	deltas := log.all()
	assert.Greater(t, deltas[len(deltas)-1].Seq, published.LastSeq)
}

func TestStore_Drain(t *testing.T) {
	red, _, _ := testKeys(t)
	b := state.NewInMemoryBackend()
	s := Open(b)
	require.True(t, s.Reconcile(catalog.Snapshot{Seq: 1, Groups: testGroups()}))

	_, ok := s.Drain()
	assert.False(t, ok)
	_, err := b.Load()
	require.NoError(t, err, "an empty drain must not clear durable state")

	_, _, err = s.Adjust(red, 2)
	require.NoError(t, err)
	m, ok := s.Drain()
	require.True(t, ok)
	assert.Equal(t, 2, m[red])
	assert.Zero(t, s.Selection().Total())
	_, err = b.Load()
	require.ErrorIs(t, err, state.ErrNotFound)
}
