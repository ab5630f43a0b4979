package catalog

// Group is the set of records sharing one variant, in catalog order.
type Group struct {
	Variant string   `json:"variant"`
	Items   []Record `json:"items"`
}

// GroupByVariant normalizes records and groups them on their variant.
// Groups appear in order of first appearance and items keep their relative order.
func GroupByVariant(records []Record) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, rec := range records {
		rec = rec.Normalize()
		v := rec.GroupVariant()
		i, ok := index[v]
		if !ok {
			i = len(groups)
			index[v] = i
			groups = append(groups, Group{Variant: v})
		}
		groups[i].Items = append(groups[i].Items, rec)
	}
	return groups
}
