// Package scaffold materializes embedded project templates into a
// directory. The matrix runner scaffolds one project per cell; the init
// command scaffolds one for the user.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates
var templates embed.FS

// Params fills the placeholders of a template tree.
type Params struct {
	// Template is the template kind, one of Names().
	Template string
	// Module is the module path written to the scaffolded go.mod.
	Module string
	// ReplaceDir, when set, adds a replace directive pointing the
	// library dependency at a local checkout so cells resolve it
	// without the network.
	ReplaceDir string
}

// Names returns the available template kinds in lexical order.
func Names() []string {
	entries, err := templates.ReadDir("templates")
	if err != nil {
		// The directory is embedded at compile time.
		panic(fmt.Sprintf("scaffold: read embedded templates: %v", err))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// Scaffold renders the template tree named by p.Template into dir. The
// directory may exist but must be empty; anything already present is
// never overwritten. Rendered files drop the .tmpl suffix.
func Scaffold(dir string, p Params) error {
	if p.Template == "" {
		return fmt.Errorf("scaffold: template is required")
	}
	if p.Module == "" {
		return fmt.Errorf("scaffold: module is required")
	}

	root := path.Join("templates", p.Template)
	if _, err := fs.Stat(templates, root); err != nil {
		return fmt.Errorf("scaffold: no template %q", p.Template)
	}

	if err := ensureEmptyDir(dir); err != nil {
		return err
	}

	return fs.WalkDir(templates, root, func(name string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if name == root {
			return nil
		}

		rel := strings.TrimPrefix(name, root+"/")
		target := filepath.Join(dir, filepath.FromSlash(strings.TrimSuffix(rel, ".tmpl")))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return renderFile(name, target, p)
	})
}

// ensureEmptyDir creates dir if absent and rejects it if it already
// holds anything.
func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("scaffold: create %s: %w", dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("scaffold: read %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("scaffold: directory %s is not empty", dir)
	}
	return nil
}

func renderFile(name, target string, p Params) error {
	raw, err := templates.ReadFile(name)
	if err != nil {
		return fmt.Errorf("scaffold: read %s: %w", name, err)
	}

	tmpl, err := template.New(path.Base(name)).Parse(string(raw))
	if err != nil {
		return fmt.Errorf("scaffold: parse %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("scaffold: render %s: %w", name, err)
	}

	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("scaffold: write %s: %w", target, err)
	}
	return nil
}
