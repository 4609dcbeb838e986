package iam

import (
	"fmt"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// Policy is an inline policy resource attached to exactly one role. It is
// the permission artifact dependency edges point at: a resource that
// needs its grants in place before it is ready depends on the policy, not
// on the role.
type Policy struct {
	*core.Construct
	policyName string
	roleName   cfn.Value
	document   *PolicyDocument
}

var _ core.Resource = (*Policy)(nil)

// PolicyProps configures a Policy.
type PolicyProps struct {
	// PolicyName defaults to the policy's logical ID when empty.
	PolicyName string
	// RoleName names the role the policy attaches to: a Ref for in-graph
	// roles, a literal for imported ones.
	RoleName cfn.Value
}

// NewPolicy creates an empty policy under scope and registers it with the
// enclosing stack. Statements are added through the role's Grant path.
func NewPolicy(scope core.Scope, id string, props PolicyProps) (*Policy, error) {
	if props.RoleName == nil {
		return nil, fmt.Errorf("policy %q: RoleName is required", id)
	}
	p := &Policy{
		policyName: props.PolicyName,
		roleName:   props.RoleName,
		document:   &PolicyDocument{},
	}
	c, err := core.NewConstruct(scope, id, p)
	if err != nil {
		return nil, err
	}
	p.Construct = c
	if err := core.Register(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Document returns the mutable statement accumulator.
func (p *Policy) Document() *PolicyDocument { return p.document }

// PolicyName returns the effective policy name.
func (p *Policy) PolicyName() string {
	if p.policyName != "" {
		return p.policyName
	}
	return p.LogicalID()
}

// CfnType implements core.Resource.
func (p *Policy) CfnType() string { return "AWS::IAM::Policy" }

// CfnProperties implements core.Resource.
func (p *Policy) CfnProperties() cfn.Object {
	return cfn.Object{
		"PolicyName":     cfn.String(p.PolicyName()),
		"PolicyDocument": p.document.Value(),
		"Roles":          cfn.Array{p.roleName},
	}
}
