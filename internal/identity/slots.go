package identity

import "showroom/internal/catalog"

// Slot is one selectable unit of a grouped snapshot.
type Slot struct {
	Key        string
	Identity   Identity
	GroupIndex int
	Position   int
	Variant    string
	Record     catalog.Record
}

// Enumerate lists every slot of groups in catalog order: groups, then records,
// then colors. A record without colors contributes exactly one slot.
// Records are normalized first, so blank or repeated colors add nothing.
func Enumerate(groups []catalog.Group) []Slot {
	var slots []Slot
	for gi, g := range groups {
		for pos, rec := range g.Items {
			rec = rec.Normalize()
			colors := rec.Colors
			if len(colors) == 0 {
				colors = []string{""}
			}
			for _, c := range colors {
				id := Derive(g.Variant, rec, pos, c)
				slots = append(slots, Slot{
					Key:        id.Key(),
					Identity:   id,
					GroupIndex: gi,
					Position:   pos,
					Variant:    g.Variant,
					Record:     rec,
				})
			}
		}
	}
	return slots
}

// ValidKeys returns the keys of every slot in groups, in catalog order.
func ValidKeys(groups []catalog.Group) []string {
	slots := Enumerate(groups)
	keys := make([]string, len(slots))
	for i, s := range slots {
		keys[i] = s.Key
	}
	return keys
}

// Label is the human name of the slot's model: the vehicle name when the
// catalog has one, otherwise whatever the identity carries.
func (s Slot) Label() string {
	if s.Record.VehicleName != "" {
		return s.Record.VehicleName
	}
	return s.Identity.Model().DisplayName()
}
