package firehose

import (
	"fmt"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// DeliveryStream is the composite resource: a direct-put delivery stream
// writing to one bound destination. Binding happens at construction; the
// resulting config block and dependency edges are fixed from then on.
type DeliveryStream struct {
	*core.Construct
	deliveryStreamName string
	destConfig         cfn.Object
}

var _ core.Resource = (*DeliveryStream)(nil)

// DeliveryStreamProps configures a DeliveryStream.
type DeliveryStreamProps struct {
	Destination Destination
	// DeliveryStreamName is optional; when empty the provider generates
	// one.
	DeliveryStreamName string
}

// NewDeliveryStream creates the stream construct, binds the destination
// under it, registers the stream, and records one dependency edge per
// permission artifact the bind returned. A bind error propagates before
// the stream itself is registered.
func NewDeliveryStream(scope core.Scope, id string, props DeliveryStreamProps) (*DeliveryStream, error) {
	if props.Destination == nil {
		return nil, fmt.Errorf("delivery stream %q: Destination is required", id)
	}

	ds := &DeliveryStream{deliveryStreamName: props.DeliveryStreamName}
	c, err := core.NewConstruct(scope, id, ds)
	if err != nil {
		return nil, err
	}
	ds.Construct = c

	cfg, err := props.Destination.Bind(ds)
	if err != nil {
		return nil, err
	}
	if cfg == nil || len(cfg.ExtendedS3) == 0 {
		return nil, fmt.Errorf("delivery stream %q: destination bound an empty configuration", id)
	}
	ds.destConfig = cfg.ExtendedS3

	if err := core.Register(ds); err != nil {
		return nil, err
	}
	for _, dep := range cfg.Dependables {
		if err := core.AddDependency(ds, dep); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Arn resolves to the stream ARN.
func (d *DeliveryStream) Arn() cfn.Value { return cfn.GetAtt(d.LogicalID(), "Arn") }

// CfnType implements core.Resource.
func (d *DeliveryStream) CfnType() string { return "AWS::KinesisFirehose::DeliveryStream" }

// CfnProperties implements core.Resource.
func (d *DeliveryStream) CfnProperties() cfn.Object {
	props := cfn.Object{
		"DeliveryStreamType":                 cfn.String("DirectPut"),
		"ExtendedS3DestinationConfiguration": d.destConfig,
	}
	if d.deliveryStreamName != "" {
		props["DeliveryStreamName"] = cfn.String(d.deliveryStreamName)
	}
	return props
}
