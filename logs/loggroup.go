// Package logs provides log group and log stream resources and their
// references.
package logs

import (
	"fmt"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// LogGroupRef is a log group handle.
type LogGroupRef interface {
	// LogGroupName resolves to the group name.
	LogGroupName() cfn.Value
	// LogGroupArn resolves to the group ARN (the ":*" form events are
	// written against).
	LogGroupArn() cfn.Value
}

// LogGroup is an in-graph log group.
type LogGroup struct {
	*core.Construct
	logGroupName    string
	retentionInDays int64
}

var (
	_ core.Resource = (*LogGroup)(nil)
	_ LogGroupRef   = (*LogGroup)(nil)
)

// LogGroupProps configures a LogGroup.
type LogGroupProps struct {
	// LogGroupName is optional; when empty the provider generates one.
	LogGroupName string
	// RetentionInDays is optional; zero means never expire.
	RetentionInDays int64
}

// NewLogGroup creates a log group under scope and registers it with the
// enclosing stack.
func NewLogGroup(scope core.Scope, id string, props LogGroupProps) (*LogGroup, error) {
	g := &LogGroup{
		logGroupName:    props.LogGroupName,
		retentionInDays: props.RetentionInDays,
	}
	c, err := core.NewConstruct(scope, id, g)
	if err != nil {
		return nil, err
	}
	g.Construct = c
	if err := core.Register(g); err != nil {
		return nil, err
	}
	return g, nil
}

// LogGroupName implements LogGroupRef. Ref on a log group resolves to its
// name.
func (g *LogGroup) LogGroupName() cfn.Value { return cfn.Ref(g.LogicalID()) }

// LogGroupArn implements LogGroupRef.
func (g *LogGroup) LogGroupArn() cfn.Value { return cfn.GetAtt(g.LogicalID(), "Arn") }

// CfnType implements core.Resource.
func (g *LogGroup) CfnType() string { return "AWS::Logs::LogGroup" }

// CfnProperties implements core.Resource.
func (g *LogGroup) CfnProperties() cfn.Object {
	props := cfn.Object{}
	if g.logGroupName != "" {
		props["LogGroupName"] = cfn.String(g.logGroupName)
	}
	if g.retentionInDays > 0 {
		props["RetentionInDays"] = cfn.Int(g.retentionInDays)
	}
	return props
}

// ImportedLogGroup wraps a log group that exists outside the graph,
// identified by name. Its ARN is assembled from the deployment's
// partition, region, and account at deploy time.
type ImportedLogGroup struct {
	name string
}

var _ LogGroupRef = (*ImportedLogGroup)(nil)

// ImportLogGroup builds a handle from a log group name.
func ImportLogGroup(name string) (*ImportedLogGroup, error) {
	if name == "" {
		return nil, fmt.Errorf("empty log group name")
	}
	return &ImportedLogGroup{name: name}, nil
}

// LogGroupName implements LogGroupRef.
func (g *ImportedLogGroup) LogGroupName() cfn.Value { return cfn.String(g.name) }

// LogGroupArn implements LogGroupRef.
func (g *ImportedLogGroup) LogGroupArn() cfn.Value {
	return cfn.Join("",
		cfn.String("arn:"),
		cfn.Ref("AWS::Partition"),
		cfn.String(":logs:"),
		cfn.Ref("AWS::Region"),
		cfn.String(":"),
		cfn.Ref("AWS::AccountId"),
		cfn.String(":log-group:"+g.name+":*"),
	)
}
