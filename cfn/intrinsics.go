package cfn

// Intrinsic function helpers. Each returns a plain Object in the
// provider's wire shape, so intrinsics flow through canonical marshaling
// like any other fragment.

// Ref references another resource in the same template by logical ID.
// For most resource kinds the deployed value is the resource name.
func Ref(logicalID string) Value {
	return Object{"Ref": String(logicalID)}
}

// GetAtt references an attribute of another resource, typically "Arn".
func GetAtt(logicalID, attribute string) Value {
	return Object{"Fn::GetAtt": Array{String(logicalID), String(attribute)}}
}

// Join concatenates parts with a delimiter at deploy time. Parts may mix
// literals and other intrinsics.
func Join(delimiter string, parts ...Value) Value {
	return Object{"Fn::Join": Array{String(delimiter), Array(parts)}}
}

// Sub substitutes ${...} variables in a template string at deploy time.
func Sub(template string) Value {
	return Object{"Fn::Sub": String(template)}
}
