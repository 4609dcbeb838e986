// Package assertions inspects synthesized templates in tests: resource
// counts, subset property matching, JSONPath selection, and golden-file
// comparison over the canonical encoding.
package assertions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
	"github.com/alluvium-dev/alluvium/synth"
)

// AssertionError is returned when an assertion fails. It carries the
// expected and actual outcomes in human-readable form.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// Template wraps a rendered template for inspection.
type Template struct {
	tmpl *cfn.Template
}

// FromTemplate wraps an already-rendered template.
func FromTemplate(t *cfn.Template) *Template {
	return &Template{tmpl: t}
}

// Parse reads a serialized template. Parsing is strict, matching the
// writer: floats and nulls are errors.
func Parse(data []byte) (*Template, error) {
	t, err := cfn.ParseTemplate(data)
	if err != nil {
		return nil, err
	}
	return &Template{tmpl: t}, nil
}

// ForStack synthesizes the app and wraps the named stack's template.
func ForStack(app *core.App, name string) (*Template, error) {
	asm, err := synth.Synthesize(app)
	if err != nil {
		return nil, err
	}
	art, ok := asm.Artifact(name)
	if !ok {
		return nil, fmt.Errorf("no stack %q in assembly", name)
	}
	return &Template{tmpl: art.Template}, nil
}

// ResourceCountIs asserts the template holds exactly count resources of
// the given type.
func (t *Template) ResourceCountIs(cfnType string, count int) error {
	actual := len(t.FindResources(cfnType))
	if actual != count {
		return &AssertionError{
			Type:     "resource_count",
			Expected: fmt.Sprintf("%d resources of type %s", count, cfnType),
			Actual:   fmt.Sprintf("%d resources", actual),
		}
	}
	return nil
}

// HasResourceProperties asserts at least one resource of the given type
// carries the expected properties. Matching is structural subset:
// objects may have extra keys, arrays must match element for element,
// scalars must be equal.
func (t *Template) HasResourceProperties(cfnType string, expected cfn.Value) error {
	candidates := t.FindResources(cfnType)
	for _, entry := range candidates {
		if matchSubset(expected, entry.Properties) {
			return nil
		}
	}

	actual := fmt.Sprintf("no resources of type %s", cfnType)
	if len(candidates) > 0 {
		actual = describeCandidates(candidates)
	}
	expectedJSON, err := cfn.MarshalCanonical(expected)
	if err != nil {
		return fmt.Errorf("marshal expected properties: %w", err)
	}
	return &AssertionError{
		Type:     "resource_properties",
		Expected: fmt.Sprintf("%s with properties %s", cfnType, expectedJSON),
		Actual:   actual,
	}
}

// HasOutput asserts the template defines the named output.
func (t *Template) HasOutput(name string) error {
	if _, ok := t.tmpl.Outputs[name]; !ok {
		return &AssertionError{
			Type:     "output",
			Expected: fmt.Sprintf("output %q", name),
			Actual:   "not defined",
		}
	}
	return nil
}

// FindResources returns every resource of the given type keyed by
// logical ID. An empty type matches all resources.
func (t *Template) FindResources(cfnType string) map[string]cfn.ResourceEntry {
	out := make(map[string]cfn.ResourceEntry)
	for id, entry := range t.tmpl.Resources {
		if cfnType == "" || entry.Type == cfnType {
			out[id] = entry
		}
	}
	return out
}

// Path evaluates a JSONPath selector against the whole document and
// returns the matches as plain Go values.
func (t *Template) Path(selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath %q: %w", selector, err)
	}
	return x.Get(toPlain(t.tmpl.Value())), nil
}

// describeCandidates renders the candidates' properties so the failure
// shows what was actually synthesized. IDs are sorted for stable output.
func describeCandidates(candidates map[string]cfn.ResourceEntry) string {
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d candidates without a match:", len(ids))
	for _, id := range ids {
		props, err := cfn.MarshalCanonical(candidates[id].Properties)
		if err != nil {
			fmt.Fprintf(&buf, "\n    %s: <unmarshalable: %v>", id, err)
			continue
		}
		fmt.Fprintf(&buf, "\n    %s: %s", id, props)
	}
	return buf.String()
}

// matchSubset reports whether actual structurally contains expected.
func matchSubset(expected, actual cfn.Value) bool {
	switch exp := expected.(type) {
	case cfn.Object:
		act, ok := actual.(cfn.Object)
		if !ok {
			return false
		}
		for key, expVal := range exp {
			actVal, present := act[key]
			if !present || !matchSubset(expVal, actVal) {
				return false
			}
		}
		return true
	case cfn.Array:
		act, ok := actual.(cfn.Array)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchSubset(exp[i], act[i]) {
				return false
			}
		}
		return true
	default:
		return expected == actual
	}
}

// toPlain lowers a value tree to maps, slices, and scalars for the
// JSONPath evaluator.
func toPlain(v cfn.Value) any {
	switch val := v.(type) {
	case cfn.String:
		return string(val)
	case cfn.Int:
		return int64(val)
	case cfn.Bool:
		return bool(val)
	case cfn.Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = toPlain(elem)
		}
		return out
	case cfn.Object:
		out := make(map[string]any, len(val))
		for key, elem := range val {
			out[key] = toPlain(elem)
		}
		return out
	default:
		return nil
	}
}
