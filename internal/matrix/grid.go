// Package matrix runs every scaffolded template against every pinned
// toolchain, sequentially, aborting the whole run on the first failing
// step.
//
// The matrix is declared in an HCL grid file:
//
//	toolchains = ["go1.24.5", "go1.25.0"]
//
//	template "app" {}
//
//	template "sample-app" {
//	  synth = true
//	}
//
// Each (template, toolchain) pair is one cell. A cell scaffolds a fresh
// project, then runs the fixed step list with GOTOOLCHAIN pinned to the
// cell's version, so the declared toolchain is the one that actually
// compiles.
package matrix

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Template is one template kind declared in the grid. Synth marks
// templates whose scaffolded app is expected to synthesize, adding a
// run step to the cell.
type Template struct {
	Name  string
	Synth bool
}

// Grid is the parsed matrix declaration: the toolchains axis and the
// template axis, both in file order.
type Grid struct {
	Toolchains []string
	Templates  []Template
}

// hclGridFile represents the top-level structure of a grid file for
// decoding.
type hclGridFile struct {
	Toolchains []string       `hcl:"toolchains"`
	Templates  []*hclTemplate `hcl:"template,block"`
}

type hclTemplate struct {
	Name  string `hcl:"name,label"`
	Synth bool   `hcl:"synth,optional"`
}

// LoadGrid parses and validates a grid file. Both axes must be
// non-empty, and template names and toolchains must be unique.
func LoadGrid(path string) (*Grid, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse grid file %s: %w", path, diags)
	}

	var parsed hclGridFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode grid file %s: %w", path, diags)
	}

	grid := &Grid{Toolchains: parsed.Toolchains}
	for _, t := range parsed.Templates {
		grid.Templates = append(grid.Templates, Template{Name: t.Name, Synth: t.Synth})
	}

	if err := grid.validate(); err != nil {
		return nil, fmt.Errorf("invalid grid file %s: %w", path, err)
	}
	return grid, nil
}

func (g *Grid) validate() error {
	if len(g.Toolchains) == 0 {
		return fmt.Errorf("no toolchains declared")
	}
	if len(g.Templates) == 0 {
		return fmt.Errorf("no templates declared")
	}

	seen := make(map[string]bool, len(g.Toolchains))
	for _, tc := range g.Toolchains {
		if tc == "" {
			return fmt.Errorf("empty toolchain")
		}
		if seen[tc] {
			return fmt.Errorf("duplicate toolchain %q", tc)
		}
		seen[tc] = true
	}

	names := make(map[string]bool, len(g.Templates))
	for _, t := range g.Templates {
		if t.Name == "" {
			return fmt.Errorf("template with empty name")
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate template %q", t.Name)
		}
		names[t.Name] = true
	}
	return nil
}

// Select returns the grid narrowed to the named templates, in grid
// order. An empty selection returns the grid unchanged; an unknown name
// is an error.
func (g *Grid) Select(names []string) (*Grid, error) {
	if len(names) == 0 {
		return g, nil
	}

	known := make(map[string]bool, len(g.Templates))
	for _, t := range g.Templates {
		known[t.Name] = true
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("no template %q in grid", name)
		}
		want[name] = true
	}

	narrowed := &Grid{Toolchains: g.Toolchains}
	for _, t := range g.Templates {
		if want[t.Name] {
			narrowed.Templates = append(narrowed.Templates, t)
		}
	}
	return narrowed, nil
}
