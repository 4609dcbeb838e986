// Package kms provides the encryption key resource and key references.
package kms

import (
	"fmt"
	"strings"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// KeyRef is an encryption key handle.
type KeyRef interface {
	KeyArn() cfn.Value
}

// Key is an in-graph KMS key with the account-root default key policy.
type Key struct {
	*core.Construct
	description string
}

var (
	_ core.Resource = (*Key)(nil)
	_ KeyRef        = (*Key)(nil)
)

// KeyProps configures a Key.
type KeyProps struct {
	Description string
}

// NewKey creates a key under scope and registers it with the enclosing
// stack.
func NewKey(scope core.Scope, id string, props KeyProps) (*Key, error) {
	k := &Key{description: props.Description}
	c, err := core.NewConstruct(scope, id, k)
	if err != nil {
		return nil, err
	}
	k.Construct = c
	if err := core.Register(k); err != nil {
		return nil, err
	}
	return k, nil
}

// KeyArn implements KeyRef.
func (k *Key) KeyArn() cfn.Value { return cfn.GetAtt(k.LogicalID(), "Arn") }

// CfnType implements core.Resource.
func (k *Key) CfnType() string { return "AWS::KMS::Key" }

// CfnProperties implements core.Resource. Keys require a key policy; the
// default grants the account root full access, matching provider
// guidance for keys managed through templates.
func (k *Key) CfnProperties() cfn.Object {
	props := cfn.Object{
		"KeyPolicy": cfn.Object{
			"Statement": cfn.Array{
				cfn.Object{
					"Action": cfn.String("kms:*"),
					"Effect": cfn.String("Allow"),
					"Principal": cfn.Object{
						"AWS": cfn.Join("",
							cfn.String("arn:"),
							cfn.Ref("AWS::Partition"),
							cfn.String(":iam::"),
							cfn.Ref("AWS::AccountId"),
							cfn.String(":root"),
						),
					},
					"Resource": cfn.String("*"),
				},
			},
			"Version": cfn.String("2012-10-17"),
		},
	}
	if k.description != "" {
		props["Description"] = cfn.String(k.description)
	}
	return props
}

// ImportedKey wraps a key that exists outside the graph.
type ImportedKey struct {
	arn string
}

var _ KeyRef = (*ImportedKey)(nil)

// ImportKey builds a handle from a key ARN
// (arn:PARTITION:kms:REGION:ACCOUNT:key/ID).
func ImportKey(arn string) (*ImportedKey, error) {
	if !strings.HasPrefix(arn, "arn:") || !strings.Contains(arn, ":kms:") ||
		!strings.Contains(arn, ":key/") {
		return nil, fmt.Errorf("not a key ARN: %q", arn)
	}
	return &ImportedKey{arn: arn}, nil
}

// KeyArn implements KeyRef.
func (k *ImportedKey) KeyArn() cfn.Value { return cfn.String(k.arn) }
