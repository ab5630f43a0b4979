// Package confirm turns a stored selection into priced order lines against a
// freshly fetched catalog.
package confirm

import (
	"sort"

	"github.com/shopspring/decimal"

	"showroom/internal/catalog"
	"showroom/internal/identity"
	"showroom/internal/selection"
)

// LineItem is one selected unit at confirmation time. Unresolved lines carry
// a zero unit price and the best name the key itself offers.
type LineItem struct {
	Key         string          `json:"key"`
	DisplayName string          `json:"displayName"`
	Variant     string          `json:"variant,omitempty"`
	Color       string          `json:"color,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Resolved    bool            `json:"resolved"`
}

type Confirmation struct {
	Lines      []LineItem      `json:"lines"`
	Quantity   int             `json:"quantity"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Orphans    int             `json:"orphans"`
}

// model is one record of the fresh catalog with its position.
type model struct {
	order    int
	group    int
	position int
	variant  string
	name     string
	id       identity.Identity
	rec      catalog.Record
}

type index struct {
	models []model
}

func newIndex(groups []catalog.Group) index {
	var ix index
	for gi, g := range groups {
		for pos, rec := range g.Items {
			rec = rec.Normalize()
			id := identity.Derive(g.Variant, rec, pos, "")
			ix.models = append(ix.models, model{
				order:    len(ix.models),
				group:    gi,
				position: pos,
				variant:  id.Variant,
				name:     identity.Clean(rec.VehicleName),
				id:       id,
				rec:      rec,
			})
		}
	}
	return ix
}

// first returns the first model satisfying each predicate in turn.
func (ix index) first(preds ...func(model) bool) (model, bool) {
	for _, p := range preds {
		for _, m := range ix.models {
			if p(m) {
				return m, true
			}
		}
	}
	return model{}, false
}

// match finds the fresh record a stored key refers to. Identifier matches win
// over name matches; within each, the same group and position are preferred.
func (ix index) match(k identity.Identity) (model, bool) {
	if k.Opaque() {
		return model{}, false
	}
	samePlace := func(m model) bool { return m.variant == k.Variant && m.position == k.Position }
	sameGroup := func(m model) bool { return m.variant == k.Variant }

	switch {
	case k.ID != "":
		byID := func(m model) bool { return m.id.ID == k.ID }
		return ix.first(
			func(m model) bool { return byID(m) && samePlace(m) },
			func(m model) bool { return byID(m) && sameGroup(m) },
			byID,
			// The id was dropped or replaced upstream; the record now in the
			// same place is the best remaining candidate.
			func(m model) bool { return samePlace(m) && m.id.ID != k.ID },
		)
	case k.Name != "":
		byName := func(m model) bool { return m.name == k.Name }
		return ix.first(
			func(m model) bool { return byName(m) && samePlace(m) },
			func(m model) bool { return byName(m) && sameGroup(m) },
			byName,
		)
	default:
		// Neither identifier nor name: only an anonymous record in the same
		// place can be the same unit.
		return ix.first(func(m model) bool {
			return samePlace(m) && m.id.ID == "" && m.name == ""
		})
	}
}

// colorRank orders a color within its record; colors the record no longer
// lists sort last.
func colorRank(rec catalog.Record, color string) int {
	for i, c := range rec.Colors {
		if identity.Clean(c) == color {
			return i
		}
	}
	return len(rec.Colors)
}

// Resolve prices every positive entry of sel against groups. Resolved lines
// come first in catalog order, then orphans sorted by key.
func Resolve(sel selection.Map, groups []catalog.Group) Confirmation {
	ix := newIndex(groups)

	type ranked struct {
		line  LineItem
		order int
		color int
	}
	var resolved []ranked
	var orphans []LineItem

	for key, q := range sel {
		q = selection.Clamp(q)
		if q == 0 {
			continue
		}
		k := identity.Parse(key)
		m, ok := ix.match(k)
		if !ok {
			orphans = append(orphans, LineItem{
				Key:         key,
				DisplayName: k.Model().DisplayName(),
				Variant:     k.Variant,
				Color:       k.Color,
				UnitPrice:   decimal.Zero,
				Quantity:    q,
				Subtotal:    decimal.Zero,
			})
			continue
		}
		price := m.rec.UnitPrice()
		name := m.rec.VehicleName
		if name == "" {
			name = m.id.DisplayName()
		}
		resolved = append(resolved, ranked{
			line: LineItem{
				Key:         key,
				DisplayName: name,
				Variant:     m.variant,
				Color:       k.Color,
				UnitPrice:   price,
				Quantity:    q,
				Subtotal:    price.Mul(decimal.NewFromInt(int64(q))),
				Resolved:    true,
			},
			order: m.order,
			color: colorRank(m.rec, k.Color),
		})
	}

	sort.Slice(resolved, func(i, j int) bool {
		a, b := resolved[i], resolved[j]
		if a.order != b.order {
			return a.order < b.order
		}
		if a.color != b.color {
			return a.color < b.color
		}
		return a.line.Key < b.line.Key
	})
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Key < orphans[j].Key })

	c := Confirmation{GrandTotal: decimal.Zero, Orphans: len(orphans)}
	for _, r := range resolved {
		c.Lines = append(c.Lines, r.line)
	}
	c.Lines = append(c.Lines, orphans...)
	for _, l := range c.Lines {
		c.Quantity += l.Quantity
		c.GrandTotal = c.GrandTotal.Add(l.Subtotal)
	}
	return c
}
