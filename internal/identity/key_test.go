package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom/internal/catalog"
)

func TestDerive_IdentifierFirst(t *testing.T) {
	rec := catalog.Record{ID: " BK-1 ", VehicleName: "Activa 6G"}
	id := Derive("Activa", rec, 0, "Red")
	assert.Equal(t, "v=Activa#id=BK-1#p=0#c=Red", id.Key())
	assert.Empty(t, id.Name)
}

func TestDerive_SynthesizedBase(t *testing.T) {
	rec := catalog.Record{ID: "   ", VehicleName: "Activa 6G"}
	assert.Equal(t, "v=Activa#n=Activa 6G#p=2", Derive("Activa", rec, 2, "").Key())
	assert.Equal(t, "v=Activa#n=Activa 6G#p=2#c=Blue", Derive("Activa", rec, 2, " Blue ").Key())
}

func TestDerive_AbsentDataNeverEmitsEmptySegments(t *testing.T) {
	id := Derive("  ", catalog.Record{}, 3, "   ")
	assert.Equal(t, "v=Other#p=3", id.Key())
	assert.NotContains(t, id.Key(), "=#")
}

func TestDerive_PositionDisambiguatesDuplicates(t *testing.T) {
	rec := catalog.Record{ID: "DUP", VehicleName: "Shine"}
	a := Derive("Shine", rec, 0, "")
	b := Derive("Shine", rec, 1, "")
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestDerive_NormalizesUnicode(t *testing.T) {
	// "é" precomposed vs "e" + combining acute.
	a := Derive("Caf\u00e9", catalog.Record{VehicleName: "Caf\u00e9"}, 0, "")
	b := Derive("Cafe\u0301", catalog.Record{VehicleName: "Cafe\u0301"}, 0, "")
	assert.Equal(t, a.Key(), b.Key())
}

func TestKey_EscapesSeparators(t *testing.T) {
	rec := catalog.Record{VehicleName: "X#1 = 100%"}
	id := Derive("A#B", rec, 0, "Red=Blue")
	key := id.Key()
	assert.Equal(t, "v=A%23B#n=X%231 %3D 100%25#p=0#c=Red%3DBlue", key)

	back := Parse(key)
	assert.False(t, back.Opaque())
	assert.Equal(t, id, back)
}

func TestParse_RoundTrip(t *testing.T) {
	ids := []Identity{
		{Variant: "Activa", ID: "BK-1", Position: 0, Color: "Red"},
		{Variant: "Activa", Name: "Activa 6G", Position: 4},
		{Variant: "Other", Position: 1},
	}
	for _, id := range ids {
		assert.Equal(t, id, Parse(id.Key()))
	}
}

func TestParse_OpaqueLegacyKeys(t *testing.T) {
	for _, key := range []string{
		"Activa__Activa 6G__80000__0__Red",
		"v=Activa",
		"p=0",
		"v=Activa#p=x",
		"v=Activa#p=-1",
		"v=Activa#z=1#p=0",
		"v=#p=0",
	} {
		id := Parse(key)
		assert.True(t, id.Opaque(), "key %q", key)
		assert.Equal(t, key, id.Key())
		assert.Equal(t, key, id.DisplayName())
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Activa 6G", Identity{Variant: "Activa", Name: "Activa 6G"}.DisplayName())
	assert.Equal(t, "BK-1", Identity{Variant: "Activa", ID: "BK-1"}.DisplayName())
	assert.Equal(t, "Activa", Identity{Variant: "Activa"}.DisplayName())
}

func TestEnumerate_OneSlotPerColor(t *testing.T) {
	groups := []catalog.Group{
		{Variant: "Activa", Items: []catalog.Record{
			{ID: "BK-1", VehicleName: "Activa 6G", Colors: []string{"Red", "Blue", " ", "Red"}},
			{VehicleName: "Activa 125"},
		}},
		{Variant: "Shine", Items: []catalog.Record{{VehicleName: "Shine"}}},
	}
	slots := Enumerate(groups)
	require.Len(t, slots, 4)
	assert.Equal(t, "v=Activa#id=BK-1#p=0#c=Red", slots[0].Key)
	assert.Equal(t, "v=Activa#id=BK-1#p=0#c=Blue", slots[1].Key)
	assert.Equal(t, "v=Activa#n=Activa 125#p=1", slots[2].Key)
	assert.Equal(t, 1, slots[3].GroupIndex)
	assert.Equal(t, "Shine", slots[3].Variant)

	assert.Equal(t, []string{slots[0].Key, slots[1].Key, slots[2].Key, slots[3].Key}, ValidKeys(groups))
}

func TestEnumerate_UniqueWithinDegenerateSnapshot(t *testing.T) {
	// Same identifier, same name, no colors, across and within groups.
	dup := catalog.Record{ID: "X", VehicleName: "Same"}
	groups := catalog.GroupByVariant([]catalog.Record{
		{ID: "X", VehicleName: "Same", Variant: "A"},
		{ID: "X", VehicleName: "Same", Variant: "B"},
		dup, dup, {}, {},
	})
	seen := map[string]bool{}
	for _, k := range ValidKeys(groups) {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Len(t, seen, 6)
}

func TestEnumerate_UniqueAcrossUnicodeSpellings(t *testing.T) {
	groups := catalog.GroupByVariant([]catalog.Record{
		{VehicleName: "Activa", Variant: "Activa", Colors: []string{"Ros\u00e9", "Rose\u0301"}},
		{VehicleName: "X", Variant: "Caf\u00e9"},
		{VehicleName: "X", Variant: "Cafe\u0301"},
	})
	keys := ValidKeys(groups)
	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
	assert.Equal(t, []string{
		"v=Activa#n=Activa#p=0#c=Ros\u00e9",
		"v=Caf\u00e9#n=X#p=0",
		"v=Caf\u00e9#n=X#p=1",
	}, keys)
}

func TestEnumerate_StableAcrossSnapshots(t *testing.T) {
	a := []catalog.Record{{ID: "BK-1", VehicleName: "Activa 6G", Variant: "Activa", Colors: []string{"Red"}, OnRoadPrice: catalog.ParseAmount("80000")}}
	b := []catalog.Record{{ID: " BK-1", VehicleName: "Activa 6G (new)", Variant: "Activa ", Colors: []string{"Red "}, OnRoadPrice: catalog.ParseAmount("82,000")}}
	assert.Equal(t, ValidKeys(catalog.GroupByVariant(a)), ValidKeys(catalog.GroupByVariant(b)))
}

func TestSlot_Label(t *testing.T) {
	groups := catalog.GroupByVariant([]catalog.Record{
		{ID: "BK-1", VehicleName: "Activa 6G", Variant: "Activa"},
		{ID: "BK-2", Variant: "Activa"},
	})
	slots := Enumerate(groups)
	require.Len(t, slots, 2)
	assert.Equal(t, "Activa 6G", slots[0].Label())
	assert.Equal(t, "BK-2", slots[1].Label())
}
