// Package lambda provides function references for processor targets and
// a minimal in-graph function for sample apps.
package lambda

import (
	"fmt"
	"strings"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
	"github.com/alluvium-dev/alluvium/iam"
)

// FunctionRef is a function handle.
type FunctionRef interface {
	FunctionArn() cfn.Value
}

// Function is an in-graph function with inline code. Enough for sample
// apps that want a transformation step in the template; nothing here
// bundles assets.
type Function struct {
	*core.Construct
	runtime    string
	handler    string
	inlineCode string
	role       iam.RoleRef
}

var (
	_ core.Resource = (*Function)(nil)
	_ FunctionRef   = (*Function)(nil)
)

// FunctionProps configures a Function.
type FunctionProps struct {
	Runtime    string
	Handler    string
	InlineCode string
	// Role is optional; when nil an execution role assumable by the
	// lambda service is created under the function.
	Role iam.RoleRef
}

// NewFunction creates a function under scope and registers it with the
// enclosing stack.
func NewFunction(scope core.Scope, id string, props FunctionProps) (*Function, error) {
	if props.Runtime == "" || props.Handler == "" || props.InlineCode == "" {
		return nil, fmt.Errorf("function %q: Runtime, Handler, and InlineCode are required", id)
	}
	f := &Function{
		runtime:    props.Runtime,
		handler:    props.Handler,
		inlineCode: props.InlineCode,
	}
	c, err := core.NewConstruct(scope, id, f)
	if err != nil {
		return nil, err
	}
	f.Construct = c

	role, err := core.Ensure(props.Role, func() (iam.RoleRef, error) {
		return iam.NewRole(f, "ServiceRole", iam.RoleProps{
			AssumedBy: "lambda.amazonaws.com",
		})
	})
	if err != nil {
		return nil, err
	}
	f.role = role

	if err := core.Register(f); err != nil {
		return nil, err
	}
	return f, nil
}

// FunctionArn implements FunctionRef.
func (f *Function) FunctionArn() cfn.Value { return cfn.GetAtt(f.LogicalID(), "Arn") }

// CfnType implements core.Resource.
func (f *Function) CfnType() string { return "AWS::Lambda::Function" }

// CfnProperties implements core.Resource.
func (f *Function) CfnProperties() cfn.Object {
	return cfn.Object{
		"Code":    cfn.Object{"ZipFile": cfn.String(f.inlineCode)},
		"Handler": cfn.String(f.handler),
		"Role":    f.role.RoleArn(),
		"Runtime": cfn.String(f.runtime),
	}
}

// ImportedFunction wraps a function that exists outside the graph.
type ImportedFunction struct {
	arn string
}

var _ FunctionRef = (*ImportedFunction)(nil)

// ImportFunction builds a handle from a function ARN
// (arn:PARTITION:lambda:REGION:ACCOUNT:function:NAME).
func ImportFunction(arn string) (*ImportedFunction, error) {
	if !strings.HasPrefix(arn, "arn:") || !strings.Contains(arn, ":lambda:") ||
		!strings.Contains(arn, ":function:") {
		return nil, fmt.Errorf("not a function ARN: %q", arn)
	}
	return &ImportedFunction{arn: arn}, nil
}

// FunctionArn implements FunctionRef.
func (f *ImportedFunction) FunctionArn() cfn.Value { return cfn.String(f.arn) }
