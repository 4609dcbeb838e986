package manifest

import (
	"fmt"
	"strings"

	"github.com/alluvium-dev/alluvium/core"
	"github.com/alluvium-dev/alluvium/destinations"
	"github.com/alluvium-dev/alluvium/firehose"
	"github.com/alluvium-dev/alluvium/iam"
	"github.com/alluvium-dev/alluvium/kms"
	"github.com/alluvium-dev/alluvium/lambda"
	"github.com/alluvium-dev/alluvium/logs"
	"github.com/alluvium-dev/alluvium/s3"
)

// stackRefs indexes a stack's declared resources by ID for reference
// resolution.
type stackRefs struct {
	buckets   map[string]s3.BucketRef
	keys      map[string]kms.KeyRef
	logGroups map[string]logs.LogGroupRef
	functions map[string]lambda.FunctionRef
	roles     map[string]iam.RoleRef
}

// Realize builds the construct tree a spec describes. Reference errors
// surface as *CompileError; invalid destination configuration surfaces
// as the composer's own error, unmodified.
func Realize(spec *Spec) (*core.App, error) {
	app := core.NewApp()
	for i, ss := range spec.Stacks {
		if err := realizeStack(app, ss, fmt.Sprintf("stacks[%d]", i)); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func realizeStack(app *core.App, ss StackSpec, prefix string) error {
	stack, err := core.NewStack(app, ss.Name)
	if err != nil {
		return err
	}
	if ss.Description != "" {
		stack.SetDescription(ss.Description)
	}

	refs, err := declareResources(stack, ss)
	if err != nil {
		return err
	}

	for i, st := range ss.Streams {
		field := fmt.Sprintf("%s.streams[%d].destination", prefix, i)
		props, bucket, err := destinationFor(st.Destination, refs, field)
		if err != nil {
			return err
		}
		_, err = firehose.NewDeliveryStream(stack, st.ID, firehose.DeliveryStreamProps{
			Destination:        destinations.NewS3Bucket(bucket, props),
			DeliveryStreamName: st.Name,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func declareResources(stack *core.Stack, ss StackSpec) (*stackRefs, error) {
	refs := &stackRefs{
		buckets:   make(map[string]s3.BucketRef),
		keys:      make(map[string]kms.KeyRef),
		logGroups: make(map[string]logs.LogGroupRef),
		functions: make(map[string]lambda.FunctionRef),
		roles:     make(map[string]iam.RoleRef),
	}

	for _, bs := range ss.Buckets {
		if bs.Arn != "" {
			imp, err := s3.ImportBucket(bs.Arn)
			if err != nil {
				return nil, err
			}
			refs.buckets[bs.ID] = imp
			continue
		}
		b, err := s3.NewBucket(stack, bs.ID, s3.BucketProps{BucketName: bs.BucketName})
		if err != nil {
			return nil, err
		}
		refs.buckets[bs.ID] = b
	}

	for _, ks := range ss.Keys {
		if ks.Arn != "" {
			imp, err := kms.ImportKey(ks.Arn)
			if err != nil {
				return nil, err
			}
			refs.keys[ks.ID] = imp
			continue
		}
		k, err := kms.NewKey(stack, ks.ID, kms.KeyProps{Description: ks.Description})
		if err != nil {
			return nil, err
		}
		refs.keys[ks.ID] = k
	}

	for _, ls := range ss.LogGroups {
		if ls.Existing != "" {
			imp, err := logs.ImportLogGroup(ls.Existing)
			if err != nil {
				return nil, err
			}
			refs.logGroups[ls.ID] = imp
			continue
		}
		lg, err := logs.NewLogGroup(stack, ls.ID, logs.LogGroupProps{
			LogGroupName:    ls.LogGroupName,
			RetentionInDays: ls.RetentionInDays,
		})
		if err != nil {
			return nil, err
		}
		refs.logGroups[ls.ID] = lg
	}

	for _, fx := range ss.Functions {
		fn, err := lambda.ImportFunction(fx.Arn)
		if err != nil {
			return nil, err
		}
		refs.functions[fx.ID] = fn
	}

	for _, rs := range ss.Roles {
		role, err := iam.ImportRole(rs.Arn)
		if err != nil {
			return nil, err
		}
		refs.roles[rs.ID] = role
	}

	return refs, nil
}

// destinationFor translates a destination spec into composer props. The
// destination's own invariants are not checked here.
func destinationFor(ds DestinationSpec, refs *stackRefs, field string) (destinations.S3BucketProps, s3.BucketRef, error) {
	var props destinations.S3BucketProps

	bucket, ok := refs.buckets[ds.Bucket]
	if !ok {
		return props, nil, &CompileError{
			Field:   field + ".bucket",
			Message: fmt.Sprintf("unknown bucket %q", ds.Bucket),
		}
	}

	if ds.Role != "" {
		role, err := resolveRole(ds.Role, refs, field+".role")
		if err != nil {
			return props, nil, err
		}
		props.Role = role
	}
	if ds.EncryptionKey != "" {
		key, err := resolveKey(ds.EncryptionKey, refs, field+".encryptionKey")
		if err != nil {
			return props, nil, err
		}
		props.EncryptionKey = key
	}

	props.Logging = ds.Logging
	if ds.LogGroup != "" {
		lg, err := resolveLogGroup(ds.LogGroup, refs)
		if err != nil {
			return props, nil, err
		}
		props.LogGroup = lg
	}

	if ds.Processor != nil {
		fn, err := resolveFunction(ds.Processor.Function, refs, field+".processor.function")
		if err != nil {
			return props, nil, err
		}
		props.Processors = []destinations.Processor{destinations.LambdaFunctionProcessor{
			Function:       fn,
			BufferInterval: ds.Processor.BufferInterval,
			BufferSize:     ds.Processor.BufferSize,
			Retries:        ds.Processor.Retries,
		}}
	}

	props.DataOutputPrefix = ds.DataOutputPrefix
	props.ErrorOutputPrefix = ds.ErrorOutputPrefix
	props.BufferingInterval = ds.BufferingInterval
	props.BufferingSize = ds.BufferingSize
	props.Compression = destinations.Compression(ds.Compression)

	return props, bucket, nil
}

func resolveRole(v string, refs *stackRefs, field string) (iam.RoleRef, error) {
	if strings.HasPrefix(v, "arn:") {
		return iam.ImportRole(v)
	}
	role, ok := refs.roles[v]
	if !ok {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown role %q", v)}
	}
	return role, nil
}

func resolveKey(v string, refs *stackRefs, field string) (kms.KeyRef, error) {
	if strings.HasPrefix(v, "arn:") {
		return kms.ImportKey(v)
	}
	key, ok := refs.keys[v]
	if !ok {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown key %q", v)}
	}
	return key, nil
}

// resolveLogGroup resolves a declared ID; anything else is taken as the
// name of an existing group.
func resolveLogGroup(v string, refs *stackRefs) (logs.LogGroupRef, error) {
	if lg, ok := refs.logGroups[v]; ok {
		return lg, nil
	}
	return logs.ImportLogGroup(v)
}

func resolveFunction(v string, refs *stackRefs, field string) (lambda.FunctionRef, error) {
	if strings.HasPrefix(v, "arn:") {
		return lambda.ImportFunction(v)
	}
	fn, ok := refs.functions[v]
	if !ok {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown function %q", v)}
	}
	return fn, nil
}
