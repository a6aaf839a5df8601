// Package builder implements the website page builder's editing model: a
// tree of positioned widgets, copy-on-write mutation operations, canvas
// geometry, linear undo/redo history, template normalization and the
// per-tenant editing session that ties them together.
package builder

import (
	"errors"
)

var (
	ErrWidgetNotFound   = errors.New("widget not found")
	ErrUnknownType      = errors.New("unknown widget type")
	ErrInvalidMove      = errors.New("cannot move a widget into itself")
	ErrTemplateNotFound = errors.New("template not found")
	ErrNoDrag           = errors.New("no drag in progress")
	ErrSaveInProgress   = errors.New("a save is already in progress")
	ErrInvalidWidget    = errors.New("widget without id")
	ErrDuplicateID      = errors.New("duplicate widget id")
)

// End inserts at the end of a sibling list
const End = -1

// IDFunc generates unique widget ids
type IDFunc func() string

// Node is a widget on the canvas. Only container types carry children.
type Node struct {
	ID       string     `json:"id"`
	Type     WidgetType `json:"type"`
	Props    Props      `json:"props"`
	Children []*Node    `json:"children,omitempty"`
}

// Tree is the ordered list of top-level widgets.
//
// Trees are values: operations never modify a node reachable from their
// input, they copy the path to the change and share everything else.
type Tree []*Node

// NewNode creates a widget of type t. Registry defaults fill in props and
// size the caller leaves out; sections get one column per "columns".
func NewNode(t WidgetType, id string, props Props, newID IDFunc) *Node {
	s, _ := Lookup(t)
	p := s.DefaultProps.Merge(props)
	if _, ok := p.Dimension("width"); !ok {
		p["width"] = s.Width.propValue()
	}
	if _, ok := p.Dimension("height"); !ok {
		p["height"] = s.Height.propValue()
	}

	n := &Node{ID: id, Type: t, Props: p}
	if s.Container {
		n.Children = []*Node{}
	}
	if t == TypeSection {
		n.Children = reconcileColumns(n.Children, columnCount(p), newID)
	}
	return n
}

func columnCount(p Props) int {
	n, ok := p.Int("columns")
	if !ok || n < 1 {
		return 1
	}
	return n
}

func (n *Node) shallow() *Node {
	c := *n
	return &c
}

// Find returns the node with id anywhere in the tree
func Find(tree Tree, id string) *Node {
	for _, n := range tree {
		if n.ID == id {
			return n
		}
		if found := Find(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every node depth first, parents before children
func Walk(tree Tree, fn func(n *Node, depth int)) {
	walk(tree, 0, fn)
}

func walk(list []*Node, depth int, fn func(*Node, int)) {
	for _, n := range list {
		fn(n, depth)
		walk(n.Children, depth+1, fn)
	}
}

// IDs returns every id in the tree
func IDs(tree Tree) []string {
	var ids []string
	Walk(tree, func(n *Node, _ int) { ids = append(ids, n.ID) })
	return ids
}

// Count returns the number of nodes in the tree
func Count(tree Tree) int {
	c := 0
	Walk(tree, func(*Node, int) { c++ })
	return c
}

func insertAt(list []*Node, n *Node, index int) []*Node {
	if index < 0 || index > len(list) {
		index = len(list)
	}
	out := make([]*Node, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, n)
	return append(out, list[index:]...)
}

// mapNode replaces the node with id by fn(node), copying the path to it
func mapNode(list []*Node, id string, fn func(*Node) *Node) ([]*Node, bool) {
	for i, n := range list {
		var replaced *Node
		if n.ID == id {
			replaced = fn(n)
		} else if children, ok := mapNode(n.Children, id, fn); ok {
			replaced = n.shallow()
			replaced.Children = children
		} else {
			continue
		}
		out := make([]*Node, len(list))
		copy(out, list)
		out[i] = replaced
		return out, true
	}
	return list, false
}

// InsertAt inserts n as a top-level widget at index. End or an out of
// range index appends.
func InsertAt(tree Tree, n *Node, index int) Tree {
	return insertAt(tree, n, index)
}

// InsertInContainer inserts n into the children of containerID at index.
// If containerID is unknown or not a container, n is appended to the root.
func InsertInContainer(tree Tree, containerID string, n *Node, index int) Tree {
	target := Find(tree, containerID)
	if target == nil || !IsContainer(target.Type) {
		return InsertAt(tree, n, End)
	}
	out, _ := mapNode(tree, containerID, func(c *Node) *Node {
		c = c.shallow()
		c.Children = insertAt(c.Children, n, index)
		return c
	})
	return out
}

func removeNode(list []*Node, id string) ([]*Node, *Node) {
	for i, n := range list {
		if n.ID == id {
			out := make([]*Node, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), n
		}
		if children, removed := removeNode(n.Children, id); removed != nil {
			c := n.shallow()
			c.Children = children
			out := make([]*Node, len(list))
			copy(out, list)
			out[i] = c
			return out, removed
		}
	}
	return list, nil
}

// Remove deletes the node with id, and its subtree, at any depth
func Remove(tree Tree, id string) Tree {
	out, _ := removeNode(tree, id)
	return out
}

// Move reparents id under containerID at index ("" is the root). The node
// keeps its id and subtree.
func Move(tree Tree, id, containerID string, index int) (Tree, error) {
	n := Find(tree, id)
	if n == nil {
		return tree, ErrWidgetNotFound
	}
	if containerID == id || (containerID != "" && Find(n.Children, containerID) != nil) {
		return tree, ErrInvalidMove
	}

	pruned, _ := removeNode(tree, id)
	if containerID == "" {
		return InsertAt(pruned, n, index), nil
	}
	return InsertInContainer(pruned, containerID, n, index), nil
}

// Duplicate deep-copies the subtree at id with fresh ids on every node and
// appends the copy to the root. It returns the copy, or nil if id is unknown.
func Duplicate(tree Tree, id string, newID IDFunc) (Tree, *Node) {
	n := Find(tree, id)
	if n == nil {
		return tree, nil
	}
	c := cloneNode(n)
	reassignIDs(c, newID)
	return InsertAt(tree, c, End), c
}

func reassignIDs(n *Node, newID IDFunc) {
	n.ID = newID()
	for _, c := range n.Children {
		reassignIDs(c, newID)
	}
}

// UpdateProperty sets one prop on id
func UpdateProperty(tree Tree, id, key string, value any, newID IDFunc) Tree {
	return UpdateProperties(tree, id, Props{key: value}, newID)
}

// UpdateProperties shallow-merges patch into the props of id. Changing a
// section's "columns" grows or truncates its column children to match;
// content of truncated columns is dropped.
func UpdateProperties(tree Tree, id string, patch Props, newID IDFunc) Tree {
	out, _ := mapNode(tree, id, func(n *Node) *Node {
		c := n.shallow()
		c.Props = n.Props.Merge(patch)
		if _, ok := patch["columns"]; ok && c.Type == TypeSection {
			c.Children = reconcileColumns(n.Children, columnCount(c.Props), newID)
		}
		return c
	})
	return out
}

func reconcileColumns(children []*Node, want int, newID IDFunc) []*Node {
	if len(children) >= want {
		out := make([]*Node, want)
		copy(out, children[:want])
		return out
	}
	out := make([]*Node, len(children), want)
	copy(out, children)
	for len(out) < want {
		out = append(out, NewNode(TypeColumn, newID(), nil, newID))
	}
	return out
}

// Reposition sets x and y of id, clamped to the canvas origin
func Reposition(tree Tree, id string, x, y float64) Tree {
	out, _ := mapNode(tree, id, func(n *Node) *Node {
		c := n.shallow()
		c.Props = n.Props.Merge(Props{"x": max(0, x), "y": max(0, y)})
		return c
	})
	return out
}

func cloneNode(n *Node) *Node {
	c := &Node{ID: n.ID, Type: n.Type, Props: n.Props.Clone()}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = cloneNode(child)
		}
	}
	return c
}

// Clone deep-copies the tree. Props are copied one level deep per node.
func Clone(tree Tree) Tree {
	if tree == nil {
		return Tree{}
	}
	out := make(Tree, len(tree))
	for i, n := range tree {
		out[i] = cloneNode(n)
	}
	return out
}
