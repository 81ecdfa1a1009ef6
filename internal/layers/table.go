package layers

// Table is a bounds-checked, immutable mapping from object layer to
// broad-phase layer. The zero Table maps nothing.
type Table struct {
	entries []BroadPhaseLayer
}

// NewTable builds a table where object layer i maps to entries[i].
func NewTable(entries ...BroadPhaseLayer) Table {
	t := Table{entries: make([]BroadPhaseLayer, len(entries))}
	copy(t.entries, entries)
	return t
}

// Lookup returns false when o has no entry.
func (t Table) Lookup(o ObjectLayer) (BroadPhaseLayer, bool) {
	if int(o) >= len(t.entries) {
		return 0, false
	}
	return t.entries[o], true
}

func (t Table) Len() int { return len(t.entries) }

// Members lists the object layers mapped onto bp.
func (t Table) Members(bp BroadPhaseLayer) []ObjectLayer {
	var out []ObjectLayer
	for i, e := range t.entries {
		if e == bp {
			out = append(out, ObjectLayer(i))
		}
	}
	return out
}
