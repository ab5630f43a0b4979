// Package aggregate derives quantity and money totals from a catalog and a
// selection. It only reads its inputs.
package aggregate

import (
	"github.com/shopspring/decimal"

	"showroom/internal/catalog"
	"showroom/internal/identity"
	"showroom/internal/selection"
)

// UnitSummary is one (model, color) slot.
type UnitSummary struct {
	Key       string          `json:"key"`
	Color     string          `json:"color,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ModelSummary groups the color slots of one record.
type ModelSummary struct {
	Key       string          `json:"key"`
	Name      string          `json:"name"`
	Position  int             `json:"position"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Units     []UnitSummary   `json:"units"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

type GroupSummary struct {
	Variant  string          `json:"variant"`
	Models   []ModelSummary  `json:"models"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type Summary struct {
	Groups   []GroupSummary  `json:"groups"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// TotalSelected is the sum of all quantities in m, each clamped into range.
func TotalSelected(m selection.Map) int {
	total := 0
	for _, q := range m {
		total += selection.Clamp(q)
	}
	return total
}

// TotalAmount is the sum of quantity times unit price over every slot of
// groups. Keys in m that groups do not list contribute nothing.
func TotalAmount(groups []catalog.Group, m selection.Map) decimal.Decimal {
	total := decimal.Zero
	for _, s := range identity.Enumerate(groups) {
		q := selection.Clamp(m[s.Key])
		if q == 0 {
			continue
		}
		total = total.Add(s.Record.UnitPrice().Mul(decimal.NewFromInt(int64(q))))
	}
	return total
}

// Summarize walks groups in catalog order and reports every slot with its
// quantity and subtotal, plus per-model, per-group and overall totals.
func Summarize(groups []catalog.Group, m selection.Map) Summary {
	out := Summary{Groups: make([]GroupSummary, len(groups)), Amount: decimal.Zero}
	for gi, g := range groups {
		out.Groups[gi] = GroupSummary{Variant: g.Variant, Amount: decimal.Zero}
	}

	for _, s := range identity.Enumerate(groups) {
		gs := &out.Groups[s.GroupIndex]
		if n := len(gs.Models); n == 0 || gs.Models[n-1].Position != s.Position {
			gs.Models = append(gs.Models, ModelSummary{
				Key:       s.Identity.Model().Key(),
				Name:      s.Label(),
				Position:  s.Position,
				UnitPrice: s.Record.UnitPrice(),
				Amount:    decimal.Zero,
			})
		}
		ms := &gs.Models[len(gs.Models)-1]

		q := selection.Clamp(m[s.Key])
		price := s.Record.UnitPrice()
		sub := price.Mul(decimal.NewFromInt(int64(q)))
		ms.Units = append(ms.Units, UnitSummary{
			Key:       s.Key,
			Color:     s.Identity.Color,
			UnitPrice: price,
			Quantity:  q,
			Subtotal:  sub,
		})
		ms.Quantity += q
		ms.Amount = ms.Amount.Add(sub)
		gs.Quantity += q
		gs.Amount = gs.Amount.Add(sub)
		out.Quantity += q
		out.Amount = out.Amount.Add(sub)
	}
	return out
}

// Selected returns a copy of s keeping only slots with a positive quantity,
// and dropping models and groups left empty.
func (s Summary) Selected() Summary {
	out := Summary{Quantity: s.Quantity, Amount: s.Amount}
	for _, g := range s.Groups {
		ng := GroupSummary{Variant: g.Variant, Quantity: g.Quantity, Amount: g.Amount}
		for _, m := range g.Models {
			nm := m
			nm.Units = nil
			for _, u := range m.Units {
				if u.Quantity > 0 {
					nm.Units = append(nm.Units, u)
				}
			}
			if len(nm.Units) > 0 {
				ng.Models = append(ng.Models, nm)
			}
		}
		if len(ng.Models) > 0 {
			out.Groups = append(out.Groups, ng)
		}
	}
	return out
}
