// Package identity derives the keys that name one sellable unit (a model,
// optionally narrowed to a color) inside a grouped catalog snapshot.
//
// A key is a list of tagged segments joined by '#':
//
//	v=<variant>#id=<identifier>#p=<position>#c=<color>
//	v=<variant>#n=<vehicle name>#p=<position>
//
// The identifier wins over the name when present. The position within the
// group is always included because upstream rows carry no uniqueness guarantee.
// Absent segments are omitted rather than written empty.
package identity

import (
	"net/url"
	"strconv"
	"strings"

	"showroom/internal/catalog"
)

const (
	tagVariant  = "v"
	tagID       = "id"
	tagName     = "n"
	tagPosition = "p"
	tagColor    = "c"

	segmentSep = "#"
)

var escaper = strings.NewReplacer("%", "%25", "#", "%23", "=", "%3D")

// Identity is the decoded form of a key.
type Identity struct {
	Variant  string
	ID       string
	Name     string
	Position int
	Color    string
	// Raw is set only for keys that could not be decoded.
	Raw string
}

// Derive builds the identity of one unit. An empty color yields the bare
// model identity. Derive never fails; missing data degrades to the variant
// and position alone.
func Derive(groupVariant string, rec catalog.Record, position int, color string) Identity {
	id := Identity{
		Variant:  clean(groupVariant),
		Position: position,
		Color:    clean(color),
	}
	if id.Variant == "" {
		id.Variant = catalog.FallbackVariant
	}
	if ext := clean(rec.ID); ext != "" {
		id.ID = ext
	} else {
		id.Name = clean(rec.VehicleName)
	}
	return id
}

// Key encodes the identity.
func (i Identity) Key() string {
	if i.Raw != "" {
		return i.Raw
	}
	parts := make([]string, 0, 4)
	parts = append(parts, segment(tagVariant, i.Variant))
	if i.ID != "" {
		parts = append(parts, segment(tagID, i.ID))
	} else if i.Name != "" {
		parts = append(parts, segment(tagName, i.Name))
	}
	parts = append(parts, tagPosition+"="+strconv.Itoa(i.Position))
	if i.Color != "" {
		parts = append(parts, segment(tagColor, i.Color))
	}
	return strings.Join(parts, segmentSep)
}

// Model returns the identity with the color removed.
func (i Identity) Model() Identity {
	i.Color = ""
	return i
}

// Opaque reports whether the key could not be decoded.
func (i Identity) Opaque() bool { return i.Raw != "" }

// DisplayName is the best human label the identity alone can offer.
func (i Identity) DisplayName() string {
	switch {
	case i.Raw != "":
		return i.Raw
	case i.Name != "":
		return i.Name
	case i.ID != "":
		return i.ID
	default:
		return i.Variant
	}
}

// Parse decodes a key produced by Key. Keys in any other shape come back
// opaque, with Raw holding the input.
func Parse(key string) Identity {
	opaque := Identity{Raw: key}
	if key == "" {
		return opaque
	}
	var id Identity
	var seenVariant, seenPosition bool
	for _, part := range strings.Split(key, segmentSep) {
		tag, val, ok := strings.Cut(part, "=")
		if !ok {
			return opaque
		}
		v, err := url.PathUnescape(val)
		if err != nil {
			return opaque
		}
		switch tag {
		case tagVariant:
			id.Variant, seenVariant = v, true
		case tagID:
			id.ID = v
		case tagName:
			id.Name = v
		case tagPosition:
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return opaque
			}
			id.Position, seenPosition = n, true
		case tagColor:
			id.Color = v
		default:
			return opaque
		}
	}
	if !seenVariant || !seenPosition || id.Variant == "" {
		return opaque
	}
	return id
}

func segment(tag, val string) string { return tag + "=" + escaper.Replace(val) }

func clean(s string) string { return catalog.CleanText(s) }

// Clean trims and NFC-normalizes s the way key segments are.
func Clean(s string) string { return clean(s) }
