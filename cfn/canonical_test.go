package cfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"zero", Int(0), "0"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of strings", Strings("a", "b"), `["a","b"]`},
		{"simple object", Object{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := Object{
		"RoleARN":     String("arn:aws:iam::role/x"),
		"BucketARN":   String("arn:aws:s3:::b"),
		"Prefix":      String("raw/"),
		"BufferSizes": Int(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`{"BucketARN":"arn:aws:s3:::b","BufferSizes":3,"Prefix":"raw/","RoleARN":"arn:aws:iam::role/x"}`,
		string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 sorts after the U+10000 surrogate pair (0xD800,0xDC00) in
	// UTF-16 but before it in UTF-8. RFC 8785 requires the UTF-16 order.
	obj := Object{
		"": Int(1),
		"𐀀":      Int(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"𐀀":2,"`+""+`":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("a <b> & c"))
	require.NoError(t, err)
	assert.Equal(t, `"a <b> & c"`, string(result))
	assert.NotContains(t, string(result), `<`)
	assert.NotContains(t, string(result), `&`)
}

func TestMarshalCanonicalStringEscapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"quote", `say "hi"`, `"say \"hi\""`},
		{"backslash", `a\b`, `"a\\b"`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"control char", "a\x01b", `"a\u0001b"`},
		{"line separator literal", "a b", "\"a b\""},
		{"paragraph separator literal", "a b", "\"a b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(String(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// e + combining acute (NFD) must encode identically to the
	// precomposed form (NFC).
	decomposed := String("café")
	precomposed := String("café")

	d, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	p, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(p), string(d))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	obj := Object{
		"Resources": Object{
			"Stream": Object{
				"Type":       String("AWS::KinesisFirehose::DeliveryStream"),
				"Properties": Object{"DeliveryStreamType": String("DirectPut")},
			},
		},
	}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(Object{"bad": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil value")
}
