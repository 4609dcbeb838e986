package core

// Ensure is the reusable get-or-create: it returns supplied when it is
// non-zero (a non-nil interface or pointer), and otherwise builds a new
// value with create. The conditional "reuse if given, create exactly one
// otherwise" branch for roles and log groups goes through here instead of
// being duplicated per resource kind.
func Ensure[T comparable](supplied T, create func() (T, error)) (T, error) {
	var zero T
	if supplied != zero {
		return supplied, nil
	}
	return create()
}
