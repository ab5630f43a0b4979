package catalog

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// FallbackVariant labels records that carry neither a variant nor a vehicle name.
const FallbackVariant = "Other"

// Record is one sellable model variant as reported by the upstream catalog.
type Record struct {
	ID               string   `json:"id" yaml:"id"`
	VehicleName      string   `json:"vehicleName" yaml:"vehicleName"`
	Variant          string   `json:"variant,omitempty" yaml:"variant"`
	ExShowroomPrice  Amount   `json:"exShowroomPrice" yaml:"exShowroomPrice"`
	Tax              Amount   `json:"tax" yaml:"tax"`
	Insurance        Amount   `json:"insurance" yaml:"insurance"`
	ExtendedWarranty Amount   `json:"extendedWarranty" yaml:"extendedWarranty"`
	OnRoadPrice      Amount   `json:"onRoadPrice" yaml:"onRoadPrice"`
	Colors           []string `json:"colors,omitempty" yaml:"colors"`
}

// GroupVariant returns the trimmed variant used for grouping. It falls back
// to the vehicle name and then to FallbackVariant, so it is never empty.
func (r Record) GroupVariant() string {
	if v := CleanText(r.Variant); v != "" {
		return v
	}
	if n := CleanText(r.VehicleName); n != "" {
		return n
	}
	return FallbackVariant
}

// CleanText trims s and puts it in Unicode NFC form, so spellings that differ
// only in composition compare equal.
func CleanText(s string) string { return norm.NFC.String(strings.TrimSpace(s)) }

// Normalize cleans text fields with CleanText and drops empty or repeated
// colors while keeping their first-seen order.
func (r Record) Normalize() Record {
	r.ID = CleanText(r.ID)
	r.VehicleName = CleanText(r.VehicleName)
	r.Variant = CleanText(r.Variant)
	if len(r.Colors) == 0 {
		r.Colors = nil
		return r
	}
	seen := make(map[string]struct{}, len(r.Colors))
	colors := make([]string, 0, len(r.Colors))
	for _, c := range r.Colors {
		c = CleanText(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		colors = append(colors, c)
	}
	if len(colors) == 0 {
		colors = nil
	}
	r.Colors = colors
	return r
}

// UnmarshalJSON accepts the spreadsheet-era "BikeId" field as an alias for id.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		BikeID string `json:"bikeId"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if strings.TrimSpace(r.ID) == "" && aux.BikeID != "" {
		r.ID = aux.BikeID
	}
	return nil
}

// UnitPrice is the price charged per selected unit.
func (r Record) UnitPrice() decimal.Decimal { return r.OnRoadPrice.Value() }

// Amount is a price field that upstream sources deliver either as a number
// or as free text. Raw keeps the text as received.
type Amount struct {
	Raw   string
	value decimal.Decimal
	valid bool
}

// NewAmount builds a valid Amount from a decimal value.
func NewAmount(v decimal.Decimal) Amount {
	return Amount{Raw: v.String(), value: v, valid: true}
}

// ParseAmount coerces a price cell. Currency markers, spaces and thousands
// separators are ignored; anything else that is not numeric values as zero.
func ParseAmount(s string) Amount {
	a := Amount{Raw: s}
	clean := strings.TrimSpace(s)
	for _, prefix := range []string{"₹", "Rs.", "Rs", "INR"} {
		clean = strings.TrimSpace(strings.TrimPrefix(clean, prefix))
	}
	clean = strings.NewReplacer(",", "", " ", "", "_", "").Replace(clean)
	if clean == "" {
		return a
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return a
	}
	a.value = d
	a.valid = true
	return a
}

// Value returns the numeric amount, or zero when the field was absent or not numeric.
func (a Amount) Value() decimal.Decimal {
	if !a.valid {
		return decimal.Zero
	}
	return a.value
}

// Valid reports whether the field held a number.
func (a Amount) Valid() bool { return a.valid }

// String renders the amount the way it arrived.
func (a Amount) String() string {
	if a.valid && a.Raw == "" {
		return a.value.String()
	}
	return a.Raw
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*a = Amount{}
		return nil
	}
	if s[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*a = ParseAmount(text)
		return nil
	}
	// Non-string tokens (numbers, booleans) go through the same coercion.
	*a = ParseAmount(s)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		if a.Raw == "" {
			return []byte("null"), nil
		}
		return json.Marshal(a.Raw)
	}
	return []byte(a.value.String()), nil
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		*a = Amount{}
		return nil
	}
	*a = ParseAmount(node.Value)
	return nil
}

// MarshalYAML writes numbers as numbers and anything else as the text received.
func (a Amount) MarshalYAML() (interface{}, error) {
	switch {
	case a.valid && a.value.IsInteger():
		return a.value.IntPart(), nil
	case a.valid:
		return a.value.InexactFloat64(), nil
	case a.Raw == "":
		return nil, nil
	default:
		return a.Raw, nil
	}
}
