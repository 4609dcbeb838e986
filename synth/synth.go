// Package synth turns a construct tree into its deployable artifacts: one
// canonical template per stack plus an assembly manifest. Synthesis is
// read-only over the tree, so synthesizing the same app twice yields
// byte-identical output.
package synth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// StackArtifact is one synthesized stack: its rendered template, the
// file name it serializes to, and the content hash of the canonical
// encoding.
type StackArtifact struct {
	Name         string
	TemplateFile string
	Template     *cfn.Template
	Hash         string
}

// Assembly is the synthesis result for a whole app.
type Assembly struct {
	artifacts []StackArtifact
	byName    map[string]int
}

// Synthesize renders every stack in the app. Each stack's dependency
// edges are checked against its registered resources and for cycles
// before anything is rendered; the first invalid stack aborts the whole
// synthesis.
func Synthesize(app *core.App) (*Assembly, error) {
	asm := &Assembly{byName: make(map[string]int)}
	for _, stack := range app.Stacks() {
		name := stack.Name()
		if strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("stack name %q is not usable as a file name", name)
		}

		tmpl, err := renderStack(stack)
		if err != nil {
			return nil, fmt.Errorf("synthesize stack %q: %w", name, err)
		}
		hash, err := cfn.TemplateHash(tmpl)
		if err != nil {
			return nil, fmt.Errorf("synthesize stack %q: %w", name, err)
		}

		asm.byName[name] = len(asm.artifacts)
		asm.artifacts = append(asm.artifacts, StackArtifact{
			Name:         name,
			TemplateFile: name + ".template.json",
			Template:     tmpl,
			Hash:         hash,
		})
	}
	return asm, nil
}

// Artifacts returns the synthesized stacks in app order.
func (a *Assembly) Artifacts() []StackArtifact { return a.artifacts }

// Artifact looks up a stack artifact by stack name.
func (a *Assembly) Artifact(name string) (StackArtifact, bool) {
	i, ok := a.byName[name]
	if !ok {
		return StackArtifact{}, false
	}
	return a.artifacts[i], true
}

// Manifest assembles the manifest document: schema version plus one
// entry per stack naming its template file and content hash.
func (a *Assembly) Manifest() cfn.Object {
	artifacts := make(cfn.Object, len(a.artifacts))
	for _, art := range a.artifacts {
		artifacts[art.Name] = cfn.Object{
			"templateFile": cfn.String(art.TemplateFile),
			"templateHash": cfn.String(art.Hash),
		}
	}
	return cfn.Object{
		"version":   cfn.Int(1),
		"artifacts": artifacts,
	}
}

// WriteTo writes every stack template and the manifest into dir,
// creating it if needed. Files hold exactly the canonical encoding, so
// re-synthesizing an unchanged app rewrites identical bytes.
func (a *Assembly) WriteTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write assembly: %w", err)
	}

	for _, art := range a.artifacts {
		data, err := cfn.MarshalCanonical(art.Template.Value())
		if err != nil {
			return fmt.Errorf("write assembly: stack %q: %w", art.Name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, art.TemplateFile), data, 0o644); err != nil {
			return fmt.Errorf("write assembly: %w", err)
		}
	}

	manifest, err := cfn.MarshalCanonical(a.Manifest())
	if err != nil {
		return fmt.Errorf("write assembly: manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifest, 0o644); err != nil {
		return fmt.Errorf("write assembly: %w", err)
	}
	return nil
}

// renderStack folds the stack's edge set into per-resource DependsOn
// lists and assembles the template. Resources render in registration
// order; the canonical encoding puts them in key order on disk.
func renderStack(stack *core.Stack) (*cfn.Template, error) {
	byID := make(map[string]core.Resource, len(stack.Resources()))
	var order []string
	for _, r := range stack.Resources() {
		byID[r.LogicalID()] = r
		order = append(order, r.LogicalID())
	}

	deps := make(map[string][]string)
	for _, e := range stack.Edges() {
		if _, ok := byID[e.From]; !ok {
			return nil, fmt.Errorf("dependency %s -> %s: unknown resource %s", e.From, e.To, e.From)
		}
		if _, ok := byID[e.To]; !ok {
			return nil, fmt.Errorf("dependency %s -> %s: unknown resource %s", e.From, e.To, e.To)
		}
		deps[e.From] = append(deps[e.From], e.To)
	}

	if cycle := findCycle(order, deps); cycle != nil {
		return nil, fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
	}

	tmpl := cfn.NewTemplate(stack.Description())
	for _, r := range stack.Resources() {
		err := tmpl.AddResource(r.LogicalID(), cfn.ResourceEntry{
			Type:       r.CfnType(),
			Properties: r.CfnProperties(),
			DependsOn:  deps[r.LogicalID()],
		})
		if err != nil {
			return nil, err
		}
	}

	names, defs := stack.Outputs()
	for _, name := range names {
		if err := tmpl.AddOutput(name, defs[name]); err != nil {
			return nil, err
		}
	}
	return tmpl, nil
}

// findCycle walks the dependency graph depth-first and returns the
// first cycle found as a path ending where it started, e.g.
//
//	[StreamA, PolicyB, StreamA]
//
// meaning StreamA depends on PolicyB which depends back on StreamA.
// Returns nil for an acyclic graph. Roots are visited in registration
// order so the reported cycle is stable across runs.
func findCycle(order []string, deps map[string][]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(order))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = visiting
		path = append(path, id)
		for _, next := range deps[id] {
			switch state[next] {
			case visiting:
				for i, p := range path {
					if p == next {
						cycle := append([]string(nil), path[i:]...)
						return append(cycle, next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, id := range order {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
