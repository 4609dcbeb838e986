package logs

import (
	"fmt"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// LogStream is a named stream inside a log group. Streams created for an
// imported group live under whatever scope creates them; the group link
// is by name, not by tree position.
type LogStream struct {
	*core.Construct
	logGroup      LogGroupRef
	logStreamName string
}

var _ core.Resource = (*LogStream)(nil)

// LogStreamProps configures a LogStream.
type LogStreamProps struct {
	LogGroup LogGroupRef
	// LogStreamName is optional; when empty the provider generates one.
	LogStreamName string
}

// NewLogStream creates a log stream under scope and registers it with
// the enclosing stack.
func NewLogStream(scope core.Scope, id string, props LogStreamProps) (*LogStream, error) {
	if props.LogGroup == nil {
		return nil, fmt.Errorf("log stream %q: LogGroup is required", id)
	}
	s := &LogStream{
		logGroup:      props.LogGroup,
		logStreamName: props.LogStreamName,
	}
	c, err := core.NewConstruct(scope, id, s)
	if err != nil {
		return nil, err
	}
	s.Construct = c
	if err := core.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}

// LogStreamName resolves to the stream name.
func (s *LogStream) LogStreamName() cfn.Value { return cfn.Ref(s.LogicalID()) }

// CfnType implements core.Resource.
func (s *LogStream) CfnType() string { return "AWS::Logs::LogStream" }

// CfnProperties implements core.Resource.
func (s *LogStream) CfnProperties() cfn.Object {
	props := cfn.Object{
		"LogGroupName": s.logGroup.LogGroupName(),
	}
	if s.logStreamName != "" {
		props["LogStreamName"] = cfn.String(s.logStreamName)
	}
	return props
}
