package core

import (
	"fmt"

	"github.com/alluvium-dev/alluvium/cfn"
)

// App is the root of a construct tree. Two apps share nothing; building
// the same graph in two apps yields structurally identical output.
type App struct {
	node   *TreeNode
	stacks []*Stack
}

// NewApp returns an empty app.
func NewApp() *App {
	a := &App{}
	a.node = newTreeNode(nil, "", a)
	return a
}

// Node implements Scope.
func (a *App) Node() *TreeNode { return a.node }

// Stacks returns the app's stacks in creation order.
func (a *App) Stacks() []*Stack { return a.stacks }

// Resource is a construct that materializes as one template resource.
type Resource interface {
	Scope
	LogicalID() string
	CfnType() string
	CfnProperties() cfn.Object
}

// DependencyEdge is an explicit ordering constraint between two resources
// in a stack: From must not be considered ready before To exists.
type DependencyEdge struct {
	From string
	To   string
}

// Stack is one synthesis unit: it collects the resources registered
// beneath it, the dependency edges between them, and its outputs.
type Stack struct {
	node        *TreeNode
	name        string
	description string

	resources []Resource
	byID      map[string]Resource

	edges   []DependencyEdge
	edgeSet map[DependencyEdge]struct{}

	outputs     map[string]cfn.Output
	outputOrder []string
}

// NewStack creates a named stack under app. Stack names must be unique
// within the app.
func NewStack(app *App, name string) (*Stack, error) {
	s := &Stack{
		name:    name,
		byID:    make(map[string]Resource),
		edgeSet: make(map[DependencyEdge]struct{}),
		outputs: make(map[string]cfn.Output),
	}
	node, err := app.node.addChild(name, s)
	if err != nil {
		return nil, fmt.Errorf("stack %q: %w", name, err)
	}
	s.node = node
	app.stacks = append(app.stacks, s)
	return s, nil
}

// Node implements Scope.
func (s *Stack) Node() *TreeNode { return s.node }

// Name returns the stack name.
func (s *Stack) Name() string { return s.name }

// Description returns the stack description, if set.
func (s *Stack) Description() string { return s.description }

// SetDescription sets the template description.
func (s *Stack) SetDescription(d string) { s.description = d }

// Resources returns registered resources in registration order.
func (s *Stack) Resources() []Resource { return s.resources }

// Edges returns recorded dependency edges in recording order, duplicates
// already removed.
func (s *Stack) Edges() []DependencyEdge { return s.edges }

// Outputs returns output names in insertion order with their definitions.
func (s *Stack) Outputs() ([]string, map[string]cfn.Output) {
	return s.outputOrder, s.outputs
}

// AddOutput records a stack output. Duplicate names are an error.
func (s *Stack) AddOutput(name string, out cfn.Output) error {
	if name == "" {
		return fmt.Errorf("stack %q: empty output name", s.name)
	}
	if _, exists := s.outputs[name]; exists {
		return fmt.Errorf("stack %q: duplicate output %q", s.name, name)
	}
	s.outputs[name] = out
	s.outputOrder = append(s.outputOrder, name)
	return nil
}

// StackOf walks up from scope to the enclosing stack.
func StackOf(scope Scope) (*Stack, error) {
	for n := scope.Node(); n != nil; n = n.parent {
		if s, ok := n.Host().(*Stack); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("construct %q is not inside a stack", scope.Node().PathString())
}

// Register records a resource with its enclosing stack. Resource
// constructors call this once, after their construct node exists.
func Register(r Resource) error {
	stack, err := StackOf(r)
	if err != nil {
		return err
	}
	id := r.LogicalID()
	if prev, exists := stack.byID[id]; exists {
		return fmt.Errorf("stack %q: logical ID collision %q (%s vs %s)",
			stack.name, id, prev.CfnType(), r.CfnType())
	}
	stack.byID[id] = r
	stack.resources = append(stack.resources, r)
	return nil
}

// AddDependency records an edge so that from is ordered after to during
// synthesis. Both resources must live in the same stack. Idempotent.
func AddDependency(from, to Resource) error {
	fromStack, err := StackOf(from)
	if err != nil {
		return err
	}
	toStack, err := StackOf(to)
	if err != nil {
		return err
	}
	if fromStack != toStack {
		return fmt.Errorf("dependency %q -> %q crosses stacks %q and %q",
			from.LogicalID(), to.LogicalID(), fromStack.name, toStack.name)
	}

	edge := DependencyEdge{From: from.LogicalID(), To: to.LogicalID()}
	if _, seen := fromStack.edgeSet[edge]; seen {
		return nil
	}
	fromStack.edgeSet[edge] = struct{}{}
	fromStack.edges = append(fromStack.edges, edge)
	return nil
}
