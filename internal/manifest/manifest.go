// Package manifest is the declarative front end: a CUE file describing
// an app is loaded into a Spec and realized into the construct tree.
//
// A manifest has a single top-level app field:
//
//	app: stacks: [{
//		name: "Ingest"
//		buckets: [{id: "landing"}]
//		streams: [{
//			id: "delivery"
//			destination: bucket: "landing"
//		}]
//	}]
//
// The loader checks structure only (required fields, unique IDs,
// resolvable references). Destination invariants are deliberately left
// to composition, so a manifest that encodes an invalid destination
// fails at Realize with the composer's own error.
package manifest

import "fmt"

// Spec is a decoded manifest.
type Spec struct {
	Stacks []StackSpec `json:"stacks"`
}

// StackSpec declares one stack and its resources. IDs share a single
// namespace within the stack; references between resources use them.
type StackSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Buckets     []BucketSpec   `json:"buckets,omitempty"`
	Keys        []KeySpec      `json:"keys,omitempty"`
	LogGroups   []LogGroupSpec `json:"logGroups,omitempty"`
	Functions   []FunctionSpec `json:"functions,omitempty"`
	Roles       []RoleSpec     `json:"roles,omitempty"`
	Streams     []StreamSpec   `json:"streams,omitempty"`
}

// BucketSpec declares a bucket. With arn set the bucket is imported;
// otherwise it is created (bucketName optional).
type BucketSpec struct {
	ID         string `json:"id"`
	BucketName string `json:"bucketName,omitempty"`
	Arn        string `json:"arn,omitempty"`
}

// KeySpec declares a KMS key. With arn set the key is imported.
type KeySpec struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Arn         string `json:"arn,omitempty"`
}

// LogGroupSpec declares a log group. With existing set, the named group
// is imported instead of created.
type LogGroupSpec struct {
	ID              string `json:"id"`
	LogGroupName    string `json:"logGroupName,omitempty"`
	RetentionInDays int64  `json:"retentionInDays,omitempty"`
	Existing        string `json:"existing,omitempty"`
}

// FunctionSpec names an existing function; functions are always
// imported.
type FunctionSpec struct {
	ID  string `json:"id"`
	Arn string `json:"arn"`
}

// RoleSpec names an existing role; roles are always imported.
type RoleSpec struct {
	ID  string `json:"id"`
	Arn string `json:"arn"`
}

// StreamSpec declares a delivery stream with its destination.
type StreamSpec struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Destination DestinationSpec `json:"destination"`
}

// DestinationSpec mirrors the destination's configuration surface.
// bucket is an ID reference; role and encryptionKey accept an ID or an
// ARN; logGroup accepts an ID or the name of an existing group.
type DestinationSpec struct {
	Bucket            string         `json:"bucket"`
	Role              string         `json:"role,omitempty"`
	EncryptionKey     string         `json:"encryptionKey,omitempty"`
	Logging           *bool          `json:"logging,omitempty"`
	LogGroup          string         `json:"logGroup,omitempty"`
	Processor         *ProcessorSpec `json:"processor,omitempty"`
	DataOutputPrefix  string         `json:"dataOutputPrefix,omitempty"`
	ErrorOutputPrefix string         `json:"errorOutputPrefix,omitempty"`
	BufferingInterval *int64         `json:"bufferingInterval,omitempty"`
	BufferingSize     *int64         `json:"bufferingSize,omitempty"`
	Compression       string         `json:"compression,omitempty"`
}

// ProcessorSpec declares the record transformation step.
type ProcessorSpec struct {
	Function       string `json:"function"`
	BufferInterval *int64 `json:"bufferInterval,omitempty"`
	BufferSize     *int64 `json:"bufferSize,omitempty"`
	Retries        *int64 `json:"retries,omitempty"`
}

// validate checks the structural rules the schema itself demands. It
// never checks destination invariants; those belong to the composer.
func (s *Spec) validate() error {
	stackNames := make(map[string]bool, len(s.Stacks))
	for i, ss := range s.Stacks {
		prefix := fmt.Sprintf("stacks[%d]", i)
		if ss.Name == "" {
			return &CompileError{Field: prefix + ".name", Message: "name is required"}
		}
		if stackNames[ss.Name] {
			return &CompileError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate stack %q", ss.Name)}
		}
		stackNames[ss.Name] = true

		if err := ss.validate(prefix); err != nil {
			return err
		}
	}
	return nil
}

func (s *StackSpec) validate(prefix string) error {
	ids := make(map[string]bool)
	claim := func(field, id string) error {
		if id == "" {
			return &CompileError{Field: field + ".id", Message: "id is required"}
		}
		if ids[id] {
			return &CompileError{Field: field + ".id", Message: fmt.Sprintf("duplicate id %q", id)}
		}
		ids[id] = true
		return nil
	}

	for i, b := range s.Buckets {
		field := fmt.Sprintf("%s.buckets[%d]", prefix, i)
		if err := claim(field, b.ID); err != nil {
			return err
		}
		if b.Arn != "" && b.BucketName != "" {
			return &CompileError{Field: field, Message: "bucketName conflicts with arn"}
		}
	}
	for i, k := range s.Keys {
		field := fmt.Sprintf("%s.keys[%d]", prefix, i)
		if err := claim(field, k.ID); err != nil {
			return err
		}
		if k.Arn != "" && k.Description != "" {
			return &CompileError{Field: field, Message: "description conflicts with arn"}
		}
	}
	for i, lg := range s.LogGroups {
		field := fmt.Sprintf("%s.logGroups[%d]", prefix, i)
		if err := claim(field, lg.ID); err != nil {
			return err
		}
		if lg.Existing != "" && (lg.LogGroupName != "" || lg.RetentionInDays != 0) {
			return &CompileError{Field: field, Message: "existing group cannot set logGroupName or retentionInDays"}
		}
	}
	for i, f := range s.Functions {
		field := fmt.Sprintf("%s.functions[%d]", prefix, i)
		if err := claim(field, f.ID); err != nil {
			return err
		}
		if f.Arn == "" {
			return &CompileError{Field: field + ".arn", Message: "arn is required"}
		}
	}
	for i, r := range s.Roles {
		field := fmt.Sprintf("%s.roles[%d]", prefix, i)
		if err := claim(field, r.ID); err != nil {
			return err
		}
		if r.Arn == "" {
			return &CompileError{Field: field + ".arn", Message: "arn is required"}
		}
	}
	for i, st := range s.Streams {
		field := fmt.Sprintf("%s.streams[%d]", prefix, i)
		if err := claim(field, st.ID); err != nil {
			return err
		}
		if st.Destination.Bucket == "" {
			return &CompileError{Field: field + ".destination.bucket", Message: "bucket is required"}
		}
		if p := st.Destination.Processor; p != nil && p.Function == "" {
			return &CompileError{Field: field + ".destination.processor.function", Message: "function is required"}
		}
	}
	return nil
}
