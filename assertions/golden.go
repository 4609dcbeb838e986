package assertions

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/alluvium-dev/alluvium/cfn"
)

// Golden compares the template's canonical encoding against a golden
// file in testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
//
// Golden files are the source of truth for expected synthesis output;
// because the encoding is canonical, any diff is a real semantic change.
func Golden(t *testing.T, name string, tmpl *Template) error {
	t.Helper()

	data, err := cfn.MarshalCanonical(tmpl.tmpl.Value())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
