package builder

import "math"

// Size is a width and height in pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ResolvedHeight is the rendered height of n: its explicit pixel height,
// else the render height of its type.
func ResolvedHeight(n *Node) float64 {
	if d, ok := n.Props.Dimension("height"); ok && !d.Percent {
		return d.Value
	}
	return RenderHeight(n.Type)
}

// resolvedWidth returns the pixel width of n. ok is false for percentage
// widths, which depend on the parent and add nothing beyond x.
func resolvedWidth(n *Node) (float64, bool) {
	d, ok := n.Props.Dimension("width")
	if !ok {
		s, _ := Lookup(n.Type)
		d = s.Width
	}
	if d.Percent {
		return 0, false
	}
	return d.Value, true
}

// Extent returns the furthest right and bottom edges reached by any widget,
// descendants included.
func Extent(tree Tree) Size {
	var ext Size
	Walk(tree, func(n *Node, _ int) {
		x, _ := n.Props.Number("x")
		y, _ := n.Props.Number("y")
		w, _ := resolvedWidth(n)
		ext.Width = math.Max(ext.Width, x+w)
		ext.Height = math.Max(ext.Height, y+ResolvedHeight(n))
	})
	return ext
}
