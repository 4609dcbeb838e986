package destinations

import (
	"strconv"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/lambda"
)

// Processor is a data transformation step applied to records before
// delivery. A destination accepts at most one.
type Processor interface {
	// Entry renders the processor entry for the processing configuration,
	// given the delivery role's ARN.
	Entry(roleArn cfn.Value) cfn.Object
	// TargetArn is the invocation target the delivery role must be
	// granted access to.
	TargetArn() cfn.Value
}

// LambdaFunctionProcessor invokes a function per record batch. The
// optional tuning fields are pointers: nil means "omit from the rendered
// parameters", which is different from an explicit zero.
type LambdaFunctionProcessor struct {
	Function lambda.FunctionRef
	// BufferInterval is the batching window in seconds.
	BufferInterval *int64
	// BufferSize is the batch size in MiB.
	BufferSize *int64
	// Retries is the invoke retry count; an explicit 0 disables retries.
	Retries *int64
}

var _ Processor = LambdaFunctionProcessor{}

// Entry implements Processor. The parameter list has a fixed,
// provider-defined order: RoleArn, LambdaArn, then the optional tuning
// parameters, each omitted when unset and never defaulted.
func (p LambdaFunctionProcessor) Entry(roleArn cfn.Value) cfn.Object {
	params := cfn.Array{
		processorParameter("RoleArn", roleArn),
		processorParameter("LambdaArn", p.Function.FunctionArn()),
	}
	if p.BufferInterval != nil {
		params = append(params, processorParameter("BufferIntervalInSeconds", int64String(*p.BufferInterval)))
	}
	if p.BufferSize != nil {
		params = append(params, processorParameter("BufferSizeInMBs", int64String(*p.BufferSize)))
	}
	if p.Retries != nil {
		params = append(params, processorParameter("NumberOfRetries", int64String(*p.Retries)))
	}

	return cfn.Object{
		"Type":       cfn.String("Lambda"),
		"Parameters": params,
	}
}

// TargetArn implements Processor.
func (p LambdaFunctionProcessor) TargetArn() cfn.Value {
	return p.Function.FunctionArn()
}

func processorParameter(name string, value cfn.Value) cfn.Object {
	return cfn.Object{
		"ParameterName":  cfn.String(name),
		"ParameterValue": value,
	}
}

// Processor parameter values are strings on the wire even when numeric.
func int64String(v int64) cfn.Value {
	return cfn.String(strconv.FormatInt(v, 10))
}

// Int64 returns a pointer to v, for the optional numeric props.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v, for the optional Logging flag.
func Bool(v bool) *bool { return &v }
