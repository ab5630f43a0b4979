package selection

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3))
	assert.Equal(t, 0, Clamp(0))
	assert.Equal(t, 4, Clamp(4))
	assert.Equal(t, MaxQuantity, Clamp(99))
}

func TestReconcile_KeySetEqualsValidKeys(t *testing.T) {
	prev := Map{"a": 2, "stale": 4}
	next := Reconcile([]string{"a", "b", "c"}, prev)

	keys := next.Keys()
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, 2, next["a"])
	assert.Equal(t, 0, next["b"])
	assert.NotContains(t, next, "stale")
	// prev is untouched
	assert.Equal(t, Map{"a": 2, "stale": 4}, prev)
}

func TestReconcile_ClampsCarriedValues(t *testing.T) {
	next := Reconcile([]string{"hi", "lo"}, Map{"hi": 9, "lo": -2})
	assert.Equal(t, Map{"hi": MaxQuantity, "lo": 0}, next)
}

func TestReconcile_Idempotent(t *testing.T) {
	valid := []string{"x", "y"}
	once := Reconcile(valid, Map{"x": 3, "z": 1})
	twice := Reconcile(valid, once)
	assert.Equal(t, once, twice)
}

func TestReconcile_NilPrevious(t *testing.T) {
	assert.Equal(t, Map{"k": 0}, Reconcile([]string{"k"}, nil))
	assert.Empty(t, Reconcile(nil, Map{"k": 1}))
}

func TestSetQuantity_Bounds(t *testing.T) {
	m := Map{"k": 0}
	m, changed := SetQuantity(m, "k", -1)
	assert.False(t, changed)
	assert.Equal(t, 0, m["k"])

	for i := 0; i < MaxQuantity; i++ {
		m, changed = SetQuantity(m, "k", 1)
		require.True(t, changed)
	}
	assert.Equal(t, MaxQuantity, m["k"])

	_, changed = SetQuantity(m, "k", 1)
	assert.False(t, changed)
}

func TestSetQuantity_UnchangedReturnsSameMap(t *testing.T) {
	m := Map{"k": MaxQuantity}
	out, changed := SetQuantity(m, "k", 3)
	assert.False(t, changed)
	out["probe"] = 1
	assert.Equal(t, 1, m["probe"], "expected the identical map back")
}

func TestSetQuantity_ChangedCopiesOneKey(t *testing.T) {
	m := Map{"a": 1, "b": 2}
	out, changed := SetQuantity(m, "a", 2)
	require.True(t, changed)
	assert.Equal(t, Map{"a": 3, "b": 2}, out)
	assert.Equal(t, Map{"a": 1, "b": 2}, m)
}

func TestSetQuantity_AbsentKey(t *testing.T) {
	m := Map{}
	out, changed := SetQuantity(m, "new", -1)
	assert.False(t, changed)
	assert.NotContains(t, out, "new")

	out, changed = SetQuantity(m, "new", 1)
	assert.True(t, changed)
	assert.Equal(t, 1, out["new"])
}

func TestSetQuantity_HugeDeltas(t *testing.T) {
	out, _ := SetQuantity(Map{"k": 2}, "k", int(^uint(0)>>1))
	assert.Equal(t, MaxQuantity, out["k"])
	out, _ = SetQuantity(out, "k", -int(^uint(0)>>1))
	assert.Equal(t, 0, out["k"])
}

func TestSetQuantity_RandomDeltasStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := []string{"a", "b", "c"}
	m := Reconcile(keys, nil)
	for i := 0; i < 2000; i++ {
		k := keys[rng.Intn(len(keys))]
		m, _ = SetQuantity(m, k, rng.Intn(13)-6)
		for _, q := range m {
			require.GreaterOrEqual(t, q, 0)
			require.LessOrEqual(t, q, MaxQuantity)
		}
	}
	got := m.Keys()
	sort.Strings(keys)
	assert.Equal(t, keys, got)
}

func TestMap_TotalAndCopy(t *testing.T) {
	m := Map{"a": 2, "b": 0, "c": 3}
	assert.Equal(t, 5, m.Total())

	c := m.Copy()
	c["a"] = 5
	assert.Equal(t, 2, m["a"])
	assert.NotNil(t, Map(nil).Copy())
}
