// Package selection owns the buyer's per-unit quantity map: the pure
// reconcile and bounded-update rules, and the Store that applies them one
// mutation at a time and keeps the durable copy in step.
package selection

import "sort"

// MaxQuantity is the upper bound for any single unit.
const MaxQuantity = 5

// Map holds identity key -> quantity, each in [0, MaxQuantity].
type Map map[string]int

// Clamp bounds q into [0, MaxQuantity].
func Clamp(q int) int {
	if q < 0 {
		return 0
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

// Reconcile returns a map whose key set is exactly validKeys. Quantities
// present in prev are carried over (clamped); new keys start at 0; keys
// missing from validKeys are dropped. prev is not modified.
func Reconcile(validKeys []string, prev Map) Map {
	next := make(Map, len(validKeys))
	for _, k := range validKeys {
		next[k] = Clamp(prev[k])
	}
	return next
}

// SetQuantity applies delta to key within bounds. When the quantity would not
// change the identical map is returned with changed=false; otherwise a copy
// with only key updated.
func SetQuantity(m Map, key string, delta int) (Map, bool) {
	if delta > MaxQuantity {
		delta = MaxQuantity
	} else if delta < -MaxQuantity {
		delta = -MaxQuantity
	}
	cur, ok := m[key]
	next := Clamp(Clamp(cur) + delta)
	if ok && next == cur {
		return m, false
	}
	if !ok && next == 0 {
		return m, false
	}
	out := m.Copy()
	out[key] = next
	return out, true
}

// Copy returns an independent copy; a nil map copies to an empty one.
func (m Map) Copy() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Total sums all positive quantities.
func (m Map) Total() int {
	n := 0
	for _, v := range m {
		if v > 0 {
			n += v
		}
	}
	return n
}

// Keys returns the keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clampAll bounds every value of m in place.
func clampAll(m Map) Map {
	for k, v := range m {
		m[k] = Clamp(v)
	}
	return m
}
