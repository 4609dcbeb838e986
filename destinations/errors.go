// Package destinations implements delivery stream destinations: each
// turns a destination configuration into the nested provider config
// block, the least-privilege grants on the delivery role, and the
// dependency edges from the stream to the permission artifacts.
package destinations

import "fmt"

// Invariant rules a configuration can violate.
const (
	// RuleLoggingConflict: logging explicitly disabled while a log group
	// is supplied.
	RuleLoggingConflict = "logging-log-group-conflict"
	// RuleSingleProcessor: more than one processor supplied. The limit is
	// on entries, not identities; the same processor twice still violates
	// it.
	RuleSingleProcessor = "single-processor"
)

// ConfigurationError reports a destination configuration that violates an
// invariant. It is raised during Bind before any resource is created, so
// a failed composition leaves no partial constructs behind. This is the
// only error kind destination composition produces.
type ConfigurationError struct {
	// Construct is the path of the scope being composed into.
	Construct string
	// Rule identifies the violated invariant.
	Rule string
	// Message is the human-readable explanation, naming the offending
	// fields.
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Construct == "" {
		return fmt.Sprintf("invalid destination configuration (%s): %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("invalid destination configuration at %s (%s): %s",
		e.Construct, e.Rule, e.Message)
}
