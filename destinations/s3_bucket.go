package destinations

import (
	"fmt"

	"github.com/alluvium-dev/alluvium/cfn"
	"github.com/alluvium-dev/alluvium/core"
	"github.com/alluvium-dev/alluvium/firehose"
	"github.com/alluvium-dev/alluvium/iam"
	"github.com/alluvium-dev/alluvium/kms"
	"github.com/alluvium-dev/alluvium/logs"
	"github.com/alluvium-dev/alluvium/s3"
)

// Compression is the delivery compression format.
type Compression string

const (
	CompressionUncompressed Compression = "UNCOMPRESSED"
	CompressionGzip         Compression = "GZIP"
	CompressionZip          Compression = "ZIP"
	CompressionSnappy       Compression = "Snappy"
	CompressionHadoopSnappy Compression = "HADOOP_SNAPPY"
)

// storageActions is the unconditional bucket access grant: read, write,
// list, and delete over the bucket and every key under it.
var storageActions = []string{
	"s3:AbortMultipartUpload",
	"s3:GetBucketLocation",
	"s3:GetObject",
	"s3:ListBucket",
	"s3:ListBucketMultipartUploads",
	"s3:PutObject",
	"s3:DeleteObject",
}

// keyActions is the key-usage grant emitted when an encryption key is
// configured.
var keyActions = []string{
	"kms:Encrypt",
	"kms:Decrypt",
	"kms:ReEncrypt*",
	"kms:GenerateDataKey*",
}

// logActions is the grant emitted when delivery error logging is on.
var logActions = []string{
	"logs:CreateLogStream",
	"logs:PutLogEvents",
}

// S3BucketProps configures an S3 bucket destination. Every field is
// optional; the zero value composes a bucket destination with a fresh
// role, logging enabled into a fresh log group, and no encryption or
// processing.
type S3BucketProps struct {
	// Role delivers with an existing role instead of creating one. The
	// role is only augmented with grants, never modified otherwise.
	Role iam.RoleRef
	// EncryptionKey enables server-side encryption with this key.
	EncryptionKey kms.KeyRef
	// Logging controls delivery error logging. Nil means enabled.
	// Explicitly false with LogGroup set is an invalid combination.
	Logging *bool
	// LogGroup receives delivery error events. When nil and logging is
	// enabled, a log group is created.
	LogGroup logs.LogGroupRef
	// Processors holds at most one transformation step. More than one
	// entry is an invalid configuration.
	Processors []Processor

	// DataOutputPrefix prepends delivered objects' keys.
	DataOutputPrefix string
	// ErrorOutputPrefix prepends failed records' keys.
	ErrorOutputPrefix string
	// BufferingInterval is the delivery buffering window in seconds.
	BufferingInterval *int64
	// BufferingSize is the delivery buffer size in MiB.
	BufferingSize *int64
	// Compression selects the delivery compression format.
	Compression Compression
}

// NewS3Bucket returns a destination delivering to bucket. Composition
// happens when the destination is bound to a delivery stream.
func NewS3Bucket(bucket s3.BucketRef, props S3BucketProps) firehose.Destination {
	return &s3Bucket{bucket: bucket, props: props}
}

type s3Bucket struct {
	bucket s3.BucketRef
	props  S3BucketProps
}

// Bind composes the destination: validate, resolve the role, emit the
// grants and the config block, and report the permission artifacts as
// dependables. Identical inputs always compose structurally identical
// output.
func (d *s3Bucket) Bind(scope core.Scope) (*firehose.DestinationConfig, error) {
	if d.bucket == nil {
		return nil, fmt.Errorf("s3 destination: bucket is required")
	}
	// All invariants are checked before any resource is created, so an
	// invalid configuration has no partial side effects.
	if err := d.validate(scope); err != nil {
		return nil, err
	}

	role, err := core.Ensure(d.props.Role, func() (iam.RoleRef, error) {
		return iam.NewRole(scope, "S3DestinationRole", iam.RoleProps{
			AssumedBy: "firehose.amazonaws.com",
		})
	})
	if err != nil {
		return nil, err
	}

	cfg := cfn.Object{
		"BucketARN": d.bucket.BucketArn(),
		"RoleARN":   role.RoleArn(),
	}
	var dependables []core.Resource

	// Bucket access is unconditional: one statement covering the bucket
	// itself and any key under it.
	storagePolicy, err := role.Grant(scope, storageActions,
		d.bucket.BucketArn(), d.bucket.ArnForObjects("*"))
	if err != nil {
		return nil, err
	}
	dependables = append(dependables, storagePolicy)

	if d.props.EncryptionKey != nil {
		keyArn := d.props.EncryptionKey.KeyArn()
		keyPolicy, err := role.Grant(scope, keyActions, keyArn)
		if err != nil {
			return nil, err
		}
		dependables = append(dependables, keyPolicy)
		cfg["EncryptionConfiguration"] = cfn.Object{
			"KMSEncryptionConfig": cfn.Object{"AWSKMSKeyARN": keyArn},
		}
	} else {
		cfg["EncryptionConfiguration"] = cfn.Object{
			"NoEncryptionConfig": cfn.String("NoEncryption"),
		}
	}

	if d.loggingEnabled() {
		loggingCfg, logPolicy, err := d.bindLogging(scope, role)
		if err != nil {
			return nil, err
		}
		dependables = append(dependables, logPolicy)
		cfg["CloudWatchLoggingOptions"] = loggingCfg
	}
	// Logging explicitly off: the section is absent, not disabled.

	if len(d.props.Processors) == 1 {
		processor := d.props.Processors[0]
		invokePolicy, err := role.Grant(scope,
			[]string{"lambda:InvokeFunction"}, processor.TargetArn())
		if err != nil {
			return nil, err
		}
		dependables = append(dependables, invokePolicy)
		cfg["ProcessingConfiguration"] = cfn.Object{
			"Enabled":    cfn.Bool(true),
			"Processors": cfn.Array{processor.Entry(role.RoleArn())},
		}
	}

	if d.props.BufferingInterval != nil || d.props.BufferingSize != nil {
		hints := cfn.Object{}
		if d.props.BufferingInterval != nil {
			hints["IntervalInSeconds"] = cfn.Int(*d.props.BufferingInterval)
		}
		if d.props.BufferingSize != nil {
			hints["SizeInMBs"] = cfn.Int(*d.props.BufferingSize)
		}
		cfg["BufferingHints"] = hints
	}
	if d.props.DataOutputPrefix != "" {
		cfg["Prefix"] = cfn.String(d.props.DataOutputPrefix)
	}
	if d.props.ErrorOutputPrefix != "" {
		cfg["ErrorOutputPrefix"] = cfn.String(d.props.ErrorOutputPrefix)
	}
	if d.props.Compression != "" {
		cfg["CompressionFormat"] = cfn.String(string(d.props.Compression))
	}

	return &firehose.DestinationConfig{
		ExtendedS3:  cfg,
		Dependables: uniqueResources(dependables),
	}, nil
}

func (d *s3Bucket) validate(scope core.Scope) error {
	if d.props.Logging != nil && !*d.props.Logging && d.props.LogGroup != nil {
		return &ConfigurationError{
			Construct: scope.Node().PathString(),
			Rule:      RuleLoggingConflict,
			Message:   "logging cannot be set to false when logGroup is provided",
		}
	}
	if len(d.props.Processors) > 1 {
		return &ConfigurationError{
			Construct: scope.Node().PathString(),
			Rule:      RuleSingleProcessor,
			Message:   "only one processor is allowed per delivery stream destination",
		}
	}
	return nil
}

func (d *s3Bucket) loggingEnabled() bool {
	return d.props.Logging == nil || *d.props.Logging
}

// bindLogging resolves the log group (reuse or create), creates the
// delivery log stream under it, and grants event writing on the group.
func (d *s3Bucket) bindLogging(scope core.Scope, role iam.RoleRef) (cfn.Object, *iam.Policy, error) {
	group, err := core.Ensure(d.props.LogGroup, func() (logs.LogGroupRef, error) {
		return logs.NewLogGroup(scope, "LogGroup", logs.LogGroupProps{})
	})
	if err != nil {
		return nil, nil, err
	}

	stream, err := logs.NewLogStream(scope, "LogStream", logs.LogStreamProps{
		LogGroup: group,
	})
	if err != nil {
		return nil, nil, err
	}

	logPolicy, err := role.Grant(scope, logActions, group.LogGroupArn())
	if err != nil {
		return nil, nil, err
	}

	return cfn.Object{
		"Enabled":       cfn.Bool(true),
		"LogGroupName":  group.LogGroupName(),
		"LogStreamName": stream.LogStreamName(),
	}, logPolicy, nil
}

// uniqueResources collapses repeated artifacts (all grants on an
// in-graph role share its default policy) preserving first-seen order.
func uniqueResources(in []core.Resource) []core.Resource {
	seen := make(map[core.Resource]struct{}, len(in))
	out := make([]core.Resource, 0, len(in))
	for _, r := range in {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
