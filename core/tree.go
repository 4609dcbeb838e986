// Package core holds the construct tree that composition runs inside:
// apps, stacks, scoped constructs, resource registration, and dependency
// edges. It owns no provider semantics; resource packages build on it.
package core

import (
	"fmt"

	"github.com/alluvium-dev/alluvium/cfn"
)

// TreeNode is one node of the construct tree. Child IDs are unique within
// a node; creation order is preserved for deterministic traversal.
type TreeNode struct {
	parent   *TreeNode
	id       string
	children map[string]*TreeNode
	order    []string
	host     any
}

func newTreeNode(parent *TreeNode, id string, host any) *TreeNode {
	return &TreeNode{
		parent:   parent,
		id:       id,
		children: make(map[string]*TreeNode),
		host:     host,
	}
}

// ID returns the node's ID within its parent scope.
func (n *TreeNode) ID() string { return n.id }

// Host returns the construct that owns this node.
func (n *TreeNode) Host() any { return n.host }

// Child returns the child with the given ID, if present.
func (n *TreeNode) Child(id string) (*TreeNode, bool) {
	c, ok := n.children[id]
	return c, ok
}

// Children returns child nodes in creation order.
func (n *TreeNode) Children() []*TreeNode {
	out := make([]*TreeNode, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.children[id])
	}
	return out
}

func (n *TreeNode) addChild(id string, host any) (*TreeNode, error) {
	if id == "" {
		return nil, fmt.Errorf("empty construct ID under %q", n.PathString())
	}
	if _, exists := n.children[id]; exists {
		return nil, fmt.Errorf("construct %q already exists under %q", id, n.PathString())
	}
	child := newTreeNode(n, id, host)
	n.children[id] = child
	n.order = append(n.order, id)
	return child, nil
}

// PathString joins all IDs from the root, for error messages and
// diagnostics.
func (n *TreeNode) PathString() string {
	if n.parent == nil {
		return n.id
	}
	return n.parent.PathString() + "/" + n.id
}

// Scope is anything a construct can be created under: the app, a stack,
// a construct, or a resource.
type Scope interface {
	Node() *TreeNode
}

// Construct is a named node in the tree. Resource types embed it to get
// tree identity, paths, and logical IDs.
type Construct struct {
	node *TreeNode
}

// NewConstruct attaches a new construct under scope. The host is the
// value that owns the node (usually the embedding resource); pass nil for
// plain grouping constructs. Fails on duplicate IDs within the scope.
func NewConstruct(scope Scope, id string, host any) (*Construct, error) {
	if scope == nil {
		return nil, fmt.Errorf("nil scope for construct %q", id)
	}
	c := &Construct{}
	if host == nil {
		host = c
	}
	node, err := scope.Node().addChild(id, host)
	if err != nil {
		return nil, err
	}
	c.node = node
	return c, nil
}

// Node implements Scope.
func (c *Construct) Node() *TreeNode { return c.node }

// ID returns the construct's ID within its parent scope.
func (c *Construct) ID() string { return c.node.id }

// Path returns the construct path within its stack: the IDs from the
// stack's first-level child down to this node. Empty outside a stack.
func (c *Construct) Path() []string {
	var path []string
	for n := c.node; n != nil && n.parent != nil; n = n.parent {
		if _, isStack := n.Host().(*Stack); isStack {
			break
		}
		path = append([]string{n.id}, path...)
	}
	return path
}

// LogicalID derives the template logical ID from the construct path.
func (c *Construct) LogicalID() string {
	return cfn.LogicalID(c.Path())
}
