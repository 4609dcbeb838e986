// Package firehose provides the delivery stream composite resource and
// the contract destinations bind against.
package firehose

import (
	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
)

// DestinationConfig is what binding a destination yields: the nested
// provider configuration block for the stream, plus the permission
// artifacts the stream must wait for.
type DestinationConfig struct {
	// ExtendedS3 is the ExtendedS3DestinationConfiguration block.
	ExtendedS3 cfn.Object
	// Dependables are the policy resources carrying the grants this
	// destination emitted. The delivery stream records a dependency edge
	// to each, so permissions exist before the stream is ready.
	Dependables []core.Resource
}

// Destination composes a destination configuration when bound to a
// delivery stream. Bind runs once, at stream construction, with the
// stream construct as scope; implementations create their supporting
// resources (role, log group, policies) under that scope.
type Destination interface {
	Bind(scope core.Scope) (*DestinationConfig, error)
}
