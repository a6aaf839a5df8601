package builder

import "sort"

// NeedsNormalization reports whether no top-level widget has a usable y.
// A single positioned widget disables normalization for the whole list.
func NeedsNormalization(widgets Tree) bool {
	if len(widgets) == 0 {
		return false
	}
	for _, n := range widgets {
		if _, ok := n.Props.Number("y"); ok {
			return false
		}
	}
	return true
}

// NormalizeSections stacks unpositioned top-level widgets vertically in
// list order. Lists that don't need it are returned unchanged.
func NormalizeSections(widgets Tree) Tree {
	if !NeedsNormalization(widgets) {
		return widgets
	}
	out := make(Tree, len(widgets))
	offset := 0.0
	for i, n := range widgets {
		c := n.shallow()
		c.Props = n.Props.Merge(Props{"y": offset})
		out[i] = c
		offset += ResolvedHeight(n)
	}
	return out
}

// SortByVerticalPosition orders top-level widgets by y, keeping the
// existing order for ties. Missing y sorts as 0.
func SortByVerticalPosition(widgets Tree) Tree {
	out := make(Tree, len(widgets))
	copy(out, widgets)
	sort.SliceStable(out, func(i, j int) bool {
		yi, _ := out[i].Props.Number("y")
		yj, _ := out[j].Props.Number("y")
		return yi < yj
	})
	return out
}
