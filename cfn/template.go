package cfn

import (
	"fmt"
	"slices"
)

// FormatVersion is the template format identifier emitted in every
// synthesized document.
const FormatVersion = "2010-09-09"

// ResourceEntry is one resource in a template: its provider type, its
// property tree, and the logical IDs it explicitly depends on.
type ResourceEntry struct {
	Type       string
	Properties Object
	DependsOn  []string
}

// Output is a named template output.
type Output struct {
	Description string
	Value       Value
}

// Template is a whole declarative document: resources keyed by logical ID
// plus optional description and outputs. It has exactly one serialized
// form, the canonical encoding, so equal templates are equal bytes.
type Template struct {
	Description string
	Resources   map[string]ResourceEntry
	Outputs     map[string]Output
}

// NewTemplate returns an empty template.
func NewTemplate(description string) *Template {
	return &Template{
		Description: description,
		Resources:   make(map[string]ResourceEntry),
		Outputs:     make(map[string]Output),
	}
}

// AddResource records a resource under its logical ID. The DependsOn list
// is copied, sorted, and deduplicated so edge insertion order never
// reaches the serialized form. Duplicate logical IDs are an error.
func (t *Template) AddResource(logicalID string, entry ResourceEntry) error {
	if logicalID == "" {
		return fmt.Errorf("empty logical ID")
	}
	if entry.Type == "" {
		return fmt.Errorf("resource %s: empty type", logicalID)
	}
	if _, exists := t.Resources[logicalID]; exists {
		return fmt.Errorf("duplicate logical ID %s", logicalID)
	}

	if len(entry.DependsOn) > 0 {
		deps := slices.Clone(entry.DependsOn)
		slices.Sort(deps)
		entry.DependsOn = slices.Compact(deps)
	}

	t.Resources[logicalID] = entry
	return nil
}

// AddOutput records a named output. Duplicate names are an error.
func (t *Template) AddOutput(name string, out Output) error {
	if name == "" {
		return fmt.Errorf("empty output name")
	}
	if _, exists := t.Outputs[name]; exists {
		return fmt.Errorf("duplicate output %s", name)
	}
	t.Outputs[name] = out
	return nil
}

// Value assembles the document as a single Object. Empty sections are
// omitted, never emitted as empty maps.
func (t *Template) Value() Object {
	doc := Object{
		"AWSTemplateFormatVersion": String(FormatVersion),
	}
	if t.Description != "" {
		doc["Description"] = String(t.Description)
	}

	if len(t.Resources) > 0 {
		resources := make(Object, len(t.Resources))
		for id, entry := range t.Resources {
			res := Object{"Type": String(entry.Type)}
			if len(entry.Properties) > 0 {
				res["Properties"] = entry.Properties
			}
			if len(entry.DependsOn) > 0 {
				deps := make(Array, len(entry.DependsOn))
				for i, d := range entry.DependsOn {
					deps[i] = String(d)
				}
				res["DependsOn"] = deps
			}
			resources[id] = res
		}
		doc["Resources"] = resources
	}

	if len(t.Outputs) > 0 {
		outputs := make(Object, len(t.Outputs))
		for name, out := range t.Outputs {
			o := Object{"Value": out.Value}
			if out.Description != "" {
				o["Description"] = String(out.Description)
			}
			outputs[name] = o
		}
		doc["Outputs"] = outputs
	}

	return doc
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (t *Template) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(t.Value())
}

// ParseTemplate reads a serialized template back into a Template. Used by
// the assertions package and anything inspecting written assemblies.
// Parsing is strict: floats and nulls anywhere in the document are errors.
func ParseTemplate(data []byte) (*Template, error) {
	root, err := UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	doc, ok := root.(Object)
	if !ok {
		return nil, fmt.Errorf("template root is %T, want object", root)
	}

	t := NewTemplate("")
	if desc, ok := doc["Description"].(String); ok {
		t.Description = string(desc)
	}

	if rawResources, ok := doc["Resources"]; ok {
		resources, ok := rawResources.(Object)
		if !ok {
			return nil, fmt.Errorf("Resources is %T, want object", rawResources)
		}
		for id, rawEntry := range resources {
			entry, err := parseResourceEntry(id, rawEntry)
			if err != nil {
				return nil, err
			}
			t.Resources[id] = entry
		}
	}

	if rawOutputs, ok := doc["Outputs"]; ok {
		outputs, ok := rawOutputs.(Object)
		if !ok {
			return nil, fmt.Errorf("Outputs is %T, want object", rawOutputs)
		}
		for name, rawOut := range outputs {
			obj, ok := rawOut.(Object)
			if !ok {
				return nil, fmt.Errorf("output %s is %T, want object", name, rawOut)
			}
			out := Output{Value: obj["Value"]}
			if desc, ok := obj["Description"].(String); ok {
				out.Description = string(desc)
			}
			t.Outputs[name] = out
		}
	}

	return t, nil
}

func parseResourceEntry(id string, raw Value) (ResourceEntry, error) {
	obj, ok := raw.(Object)
	if !ok {
		return ResourceEntry{}, fmt.Errorf("resource %s is %T, want object", id, raw)
	}

	typ, ok := obj["Type"].(String)
	if !ok {
		return ResourceEntry{}, fmt.Errorf("resource %s: missing Type", id)
	}
	entry := ResourceEntry{Type: string(typ)}

	if rawProps, ok := obj["Properties"]; ok {
		props, ok := rawProps.(Object)
		if !ok {
			return ResourceEntry{}, fmt.Errorf("resource %s: Properties is %T, want object", id, rawProps)
		}
		entry.Properties = props
	}

	if rawDeps, ok := obj["DependsOn"]; ok {
		switch deps := rawDeps.(type) {
		case String:
			entry.DependsOn = []string{string(deps)}
		case Array:
			for i, d := range deps {
				s, ok := d.(String)
				if !ok {
					return ResourceEntry{}, fmt.Errorf("resource %s: DependsOn[%d] is %T, want string", id, i, d)
				}
				entry.DependsOn = append(entry.DependsOn, string(s))
			}
		default:
			return ResourceEntry{}, fmt.Errorf("resource %s: DependsOn is %T", id, rawDeps)
		}
	}

	return entry, nil
}
