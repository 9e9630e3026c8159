package navigation

import (
	"errors"
	"fmt"
)

// MaxDepth is the deepest nesting a route declaration may use:
// top-level nodes and their direct children.
const MaxDepth = 2

var (
	ErrEmptyKey     = errors.New("route key is empty")
	ErrDuplicateKey = errors.New("route key is declared more than once")
	ErrTooDeep      = errors.New("route tree is nested too deeply")
)

// RouteNode describes one navigable page and its optional children.
type RouteNode struct {
	Key       string      `yaml:"key" json:"key"`
	Name      string      `yaml:"name" json:"name"`
	Path      string      `yaml:"path" json:"path"`
	Icon      string      `yaml:"icon,omitempty" json:"icon,omitempty"`
	Protected bool        `yaml:"protected" json:"protected"`
	Children  []RouteNode `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n RouteNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// RouteTable is the static, ordered navigation tree. It is immutable once
// built and safe for concurrent readers.
type RouteTable struct {
	nodes []RouteNode
}

// NewRouteTable validates the declared tree and wraps it in a RouteTable.
func NewRouteTable(nodes []RouteNode) (*RouteTable, error) {
	seen := make(map[string]struct{})
	if err := checkNodes(nodes, 1, seen); err != nil {
		return nil, err
	}
	return &RouteTable{nodes: cloneNodes(nodes)}, nil
}

// MustRouteTable is like NewRouteTable but panics on an invalid tree.
// Intended for package-level fixtures and tests.
func MustRouteTable(nodes []RouteNode) *RouteTable {
	t, err := NewRouteTable(nodes)
	if err != nil {
		panic(err)
	}
	return t
}

func checkNodes(nodes []RouteNode, depth int, seen map[string]struct{}) error {
	for _, n := range nodes {
		if n.Key == "" {
			return fmt.Errorf("route %q: %w", n.Name, ErrEmptyKey)
		}
		if _, dup := seen[n.Key]; dup {
			return fmt.Errorf("route %q: %w", n.Key, ErrDuplicateKey)
		}
		seen[n.Key] = struct{}{}

		if len(n.Children) == 0 {
			continue
		}
		if depth >= MaxDepth {
			return fmt.Errorf("route %q: %w (max %d levels)", n.Key, ErrTooDeep, MaxDepth)
		}
		if err := checkNodes(n.Children, depth+1, seen); err != nil {
			return err
		}
	}
	return nil
}

func cloneNodes(nodes []RouteNode) []RouteNode {
	if nodes == nil {
		return nil
	}
	out := make([]RouteNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Children = cloneNodes(n.Children)
	}
	return out
}

// Nodes returns a copy of the top-level nodes in declaration order.
func (t *RouteTable) Nodes() []RouteNode {
	return cloneNodes(t.nodes)
}

// FindByKey searches the top-level nodes first, then one level into each
// node's children. The first match wins.
func (t *RouteTable) FindByKey(key string) (RouteNode, bool) {
	for _, n := range t.nodes {
		if n.Key == key {
			return n, true
		}
	}
	for _, n := range t.nodes {
		for _, c := range n.Children {
			if c.Key == key {
				return c, true
			}
		}
	}
	return RouteNode{}, false
}

// FindTopLevel looks a key up among the top-level nodes only.
func (t *RouteTable) FindTopLevel(key string) (RouteNode, bool) {
	for _, n := range t.nodes {
		if n.Key == key {
			return n, true
		}
	}
	return RouteNode{}, false
}

// FindByPath matches the path exactly against top-level nodes. Children are
// not searched.
func (t *RouteTable) FindByPath(path string) (RouteNode, bool) {
	for _, n := range t.nodes {
		if n.Path == path {
			return n, true
		}
	}
	return RouteNode{}, false
}

// FilterProtected returns the top-level nodes that require authentication.
func (t *RouteTable) FilterProtected() []RouteNode {
	return t.filter(true)
}

// FilterPublic returns the top-level nodes that do not require authentication.
func (t *RouteTable) FilterPublic() []RouteNode {
	return t.filter(false)
}

func (t *RouteTable) filter(protected bool) []RouteNode {
	out := make([]RouteNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		if n.Protected == protected {
			out = append(out, n)
		}
	}
	return out
}

// Flatten walks the tree in pre-order, emitting parents before children.
func (t *RouteTable) Flatten() []RouteNode {
	var out []RouteNode
	var walk func([]RouteNode)
	walk = func(nodes []RouteNode) {
		for _, n := range nodes {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(t.nodes)
	return out
}

// ParentOf returns the top-level node that directly contains key.
func (t *RouteTable) ParentOf(key string) (RouteNode, bool) {
	for _, n := range t.nodes {
		for _, c := range n.Children {
			if c.Key == key {
				return n, true
			}
		}
	}
	return RouteNode{}, false
}
