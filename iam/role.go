package iam

import (
	"fmt"
	"strings"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// ServicePrincipal identifies the service allowed to assume a role,
// e.g. ServicePrincipal("firehose.amazonaws.com").
type ServicePrincipal string

// RoleRef abstracts over in-graph and imported roles. Grant attaches an
// allow statement and returns the policy artifact carrying it, so callers
// can record dependency edges against the artifact.
type RoleRef interface {
	RoleArn() cfn.Value
	RoleName() cfn.Value
	Grant(scope core.Scope, actions []string, resources ...cfn.Value) (*Policy, error)
}

// Role is an in-graph IAM role. Grants accumulate on a single default
// policy child created on first use, one per role regardless of how many
// grants it receives.
type Role struct {
	*core.Construct
	assumedBy     ServicePrincipal
	roleName      string
	defaultPolicy *Policy
}

var (
	_ core.Resource = (*Role)(nil)
	_ RoleRef       = (*Role)(nil)
)

// RoleProps configures a Role.
type RoleProps struct {
	AssumedBy ServicePrincipal
	// RoleName is optional; when empty the provider generates one.
	RoleName string
}

// NewRole creates a role under scope and registers it with the enclosing
// stack.
func NewRole(scope core.Scope, id string, props RoleProps) (*Role, error) {
	if props.AssumedBy == "" {
		return nil, fmt.Errorf("role %q: AssumedBy is required", id)
	}
	r := &Role{
		assumedBy: props.AssumedBy,
		roleName:  props.RoleName,
	}
	c, err := core.NewConstruct(scope, id, r)
	if err != nil {
		return nil, err
	}
	r.Construct = c
	if err := core.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// RoleArn implements RoleRef.
func (r *Role) RoleArn() cfn.Value { return cfn.GetAtt(r.LogicalID(), "Arn") }

// RoleName implements RoleRef. Ref on a role resolves to the role name.
func (r *Role) RoleName() cfn.Value { return cfn.Ref(r.LogicalID()) }

// Grant appends an allow statement to the role's default policy, creating
// the policy on first grant. The scope argument is unused for in-graph
// roles: their policy lives under the role itself.
func (r *Role) Grant(_ core.Scope, actions []string, resources ...cfn.Value) (*Policy, error) {
	if r.defaultPolicy == nil {
		p, err := NewPolicy(r, "DefaultPolicy", PolicyProps{RoleName: r.RoleName()})
		if err != nil {
			return nil, fmt.Errorf("role %q default policy: %w", r.ID(), err)
		}
		r.defaultPolicy = p
	}
	r.defaultPolicy.Document().Add(Allow(actions, resources...))
	return r.defaultPolicy, nil
}

// CfnType implements core.Resource.
func (r *Role) CfnType() string { return "AWS::IAM::Role" }

// CfnProperties implements core.Resource.
func (r *Role) CfnProperties() cfn.Object {
	props := cfn.Object{
		"AssumeRolePolicyDocument": cfn.Object{
			"Statement": cfn.Array{
				cfn.Object{
					"Action":    cfn.String("sts:AssumeRole"),
					"Effect":    cfn.String("Allow"),
					"Principal": cfn.Object{"Service": cfn.String(string(r.assumedBy))},
				},
			},
			"Version": cfn.String("2012-10-17"),
		},
	}
	if r.roleName != "" {
		props["RoleName"] = cfn.String(r.roleName)
	}
	return props
}

// ImportedRole wraps a role that exists outside the graph. It never
// renders as a resource; its ARN and name resolve to literals. Grants
// create a policy under the granting scope and attach it by role name.
type ImportedRole struct {
	arn  string
	name string
}

var _ RoleRef = (*ImportedRole)(nil)

// ImportRole builds a handle from a role ARN
// (arn:PARTITION:iam::ACCOUNT:role/NAME, path segments allowed).
func ImportRole(arn string) (*ImportedRole, error) {
	idx := strings.Index(arn, ":role/")
	if !strings.HasPrefix(arn, "arn:") || idx < 0 {
		return nil, fmt.Errorf("not a role ARN: %q", arn)
	}
	path := arn[idx+len(":role/"):]
	name := path[strings.LastIndex(path, "/")+1:]
	if name == "" {
		return nil, fmt.Errorf("role ARN has empty name: %q", arn)
	}
	return &ImportedRole{arn: arn, name: name}, nil
}

// RoleArn implements RoleRef.
func (r *ImportedRole) RoleArn() cfn.Value { return cfn.String(r.arn) }

// RoleName implements RoleRef.
func (r *ImportedRole) RoleName() cfn.Value { return cfn.String(r.name) }

// Grant appends an allow statement to a policy child of scope named
// "Policy", creating it on first grant under that scope. All grants an
// imported role receives within one scope share the one artifact.
func (r *ImportedRole) Grant(scope core.Scope, actions []string, resources ...cfn.Value) (*Policy, error) {
	if scope == nil {
		return nil, fmt.Errorf("imported role %q: grant needs a scope to place its policy", r.name)
	}

	var policy *Policy
	if node, ok := scope.Node().Child("Policy"); ok {
		existing, ok := node.Host().(*Policy)
		if !ok {
			return nil, fmt.Errorf("imported role %q: construct %q/Policy is not a policy",
				r.name, scope.Node().ID())
		}
		policy = existing
	} else {
		created, err := NewPolicy(scope, "Policy", PolicyProps{RoleName: r.RoleName()})
		if err != nil {
			return nil, fmt.Errorf("imported role %q policy: %w", r.name, err)
		}
		policy = created
	}

	policy.Document().Add(Allow(actions, resources...))
	return policy, nil
}
