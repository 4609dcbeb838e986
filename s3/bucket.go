// Package s3 provides the bucket resource and bucket references used as
// delivery destinations.
package s3

import (
	"fmt"
	"strings"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// BucketRef is a bucket handle: in-graph buckets resolve through
// intrinsics, imported ones to literal ARNs. Refs are immutable; the
// composer only reads them.
type BucketRef interface {
	// BucketArn resolves to the bucket ARN.
	BucketArn() cfn.Value
	// ArnForObjects resolves to the ARN covering keys matching pattern,
	// e.g. ArnForObjects("*") for any key under the bucket.
	ArnForObjects(pattern string) cfn.Value
}

// Bucket is an in-graph bucket.
type Bucket struct {
	*core.Construct
	bucketName string
}

var (
	_ core.Resource = (*Bucket)(nil)
	_ BucketRef     = (*Bucket)(nil)
)

// BucketProps configures a Bucket.
type BucketProps struct {
	// BucketName is optional; when empty the provider generates one.
	BucketName string
}

// NewBucket creates a bucket under scope and registers it with the
// enclosing stack.
func NewBucket(scope core.Scope, id string, props BucketProps) (*Bucket, error) {
	b := &Bucket{bucketName: props.BucketName}
	c, err := core.NewConstruct(scope, id, b)
	if err != nil {
		return nil, err
	}
	b.Construct = c
	if err := core.Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

// BucketArn implements BucketRef.
func (b *Bucket) BucketArn() cfn.Value { return cfn.GetAtt(b.LogicalID(), "Arn") }

// ArnForObjects implements BucketRef.
func (b *Bucket) ArnForObjects(pattern string) cfn.Value {
	return cfn.Join("", b.BucketArn(), cfn.String("/"+pattern))
}

// CfnType implements core.Resource.
func (b *Bucket) CfnType() string { return "AWS::S3::Bucket" }

// CfnProperties implements core.Resource.
func (b *Bucket) CfnProperties() cfn.Object {
	props := cfn.Object{}
	if b.bucketName != "" {
		props["BucketName"] = cfn.String(b.bucketName)
	}
	return props
}

// ImportedBucket wraps a bucket that exists outside the graph.
type ImportedBucket struct {
	arn string
}

var _ BucketRef = (*ImportedBucket)(nil)

// ImportBucket builds a handle from a bucket ARN (arn:PARTITION:s3:::NAME).
func ImportBucket(arn string) (*ImportedBucket, error) {
	if !strings.HasPrefix(arn, "arn:") || !strings.Contains(arn, ":s3:::") {
		return nil, fmt.Errorf("not a bucket ARN: %q", arn)
	}
	name := arn[strings.Index(arn, ":s3:::")+len(":s3:::"):]
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("not a bucket ARN: %q", arn)
	}
	return &ImportedBucket{arn: arn}, nil
}

// BucketArn implements BucketRef.
func (b *ImportedBucket) BucketArn() cfn.Value { return cfn.String(b.arn) }

// ArnForObjects implements BucketRef.
func (b *ImportedBucket) ArnForObjects(pattern string) cfn.Value {
	return cfn.String(b.arn + "/" + pattern)
}
