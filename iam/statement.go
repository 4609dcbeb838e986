// Package iam models roles, policies, and permission statements, and the
// grant mechanics that attach least-privilege statements to a role.
package iam

import (
	"slices"

	"github.com/alluvium-dev/alluvium/cfn"
)

// Effect is a statement effect.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// Statement is one permission rule: actions over resources with an
// effect. Immutable after construction; the constructor copies both
// slices so later caller mutations cannot leak in.
type Statement struct {
	effect    Effect
	actions   []string
	resources []cfn.Value
}

// NewStatement builds a statement. Actions and resources are copied.
func NewStatement(effect Effect, actions []string, resources ...cfn.Value) Statement {
	return Statement{
		effect:    effect,
		actions:   slices.Clone(actions),
		resources: slices.Clone(resources),
	}
}

// Allow is NewStatement with EffectAllow.
func Allow(actions []string, resources ...cfn.Value) Statement {
	return NewStatement(EffectAllow, actions, resources...)
}

// Actions returns a copy of the action list.
func (s Statement) Actions() []string { return slices.Clone(s.actions) }

// Resources returns a copy of the resource list.
func (s Statement) Resources() []cfn.Value { return slices.Clone(s.resources) }

// Effect returns the statement effect.
func (s Statement) Effect() Effect { return s.effect }

// Value renders the statement in policy-document shape. Single-element
// action and resource lists collapse to scalars, matching how the
// provider normalizes them.
func (s Statement) Value() cfn.Object {
	obj := cfn.Object{
		"Effect": cfn.String(string(s.effect)),
	}

	if len(s.actions) == 1 {
		obj["Action"] = cfn.String(s.actions[0])
	} else {
		obj["Action"] = cfn.Strings(s.actions...)
	}

	if len(s.resources) == 1 {
		obj["Resource"] = s.resources[0]
	} else {
		obj["Resource"] = cfn.Array(slices.Clone(s.resources))
	}

	return obj
}

// PolicyDocument is an ordered accumulation of statements. Statements are
// appended, never mutated or reordered, so grant order is visible in the
// rendered document.
type PolicyDocument struct {
	statements []Statement
}

// Add appends a statement.
func (d *PolicyDocument) Add(s Statement) {
	d.statements = append(d.statements, s)
}

// Statements returns the statements in append order.
func (d *PolicyDocument) Statements() []Statement {
	return slices.Clone(d.statements)
}

// Len returns how many statements the document holds.
func (d *PolicyDocument) Len() int { return len(d.statements) }

// Value renders the document.
func (d *PolicyDocument) Value() cfn.Object {
	stmts := make(cfn.Array, len(d.statements))
	for i, s := range d.statements {
		stmts[i] = s.Value()
	}
	return cfn.Object{
		"Statement": stmts,
		"Version":   cfn.String("2012-10-17"),
	}
}
