package cfn

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateHashStable(t *testing.T) {
	build := func() *Template {
		tmpl := NewTemplate("hash test")
		_ = tmpl.AddResource("Bucket", ResourceEntry{
			Type:       "AWS::S3::Bucket",
			Properties: Object{"BucketName": String("raw")},
		})
		return tmpl
	}

	h1, err := TemplateHash(build())
	require.NoError(t, err)
	h2, err := TemplateHash(build())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), h1)
}

func TestTemplateHashSensitive(t *testing.T) {
	base := NewTemplate("")
	_ = base.AddResource("Bucket", ResourceEntry{
		Type:       "AWS::S3::Bucket",
		Properties: Object{"BucketName": String("raw")},
	})

	changed := NewTemplate("")
	_ = changed.AddResource("Bucket", ResourceEntry{
		Type:       "AWS::S3::Bucket",
		Properties: Object{"BucketName": String("curated")},
	})

	assert.NotEqual(t, MustTemplateHash(base), MustTemplateHash(changed))
}

func TestLogicalID(t *testing.T) {
	id := LogicalID([]string{"DeliveryStream", "S3DestinationRole"})
	assert.Regexp(t, regexp.MustCompile(`^DeliveryStreamS3DestinationRole[0-9A-F]{8}$`), id)

	// Pure function of the path.
	assert.Equal(t, id, LogicalID([]string{"DeliveryStream", "S3DestinationRole"}))

	// Distinct paths that pascalize identically still differ by suffix.
	a := LogicalID([]string{"ab", "c"})
	b := LogicalID([]string{"a", "bc"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "AbC", a[:len(a)-8])
	assert.Equal(t, "ABc", b[:len(b)-8])
}

func TestLogicalIDSanitizes(t *testing.T) {
	id := LogicalID([]string{"delivery-stream", "log_group.main"})
	assert.Equal(t, "DeliveryStreamLogGroupMain", id[:len(id)-8])
}

func TestLogicalIDEmptyPath(t *testing.T) {
	assert.Equal(t, "", LogicalID(nil))
}
