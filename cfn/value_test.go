package cfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalValueBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"string", `"hello"`, String("hello")},
		{"int", `42`, Int(42)},
		{"negative", `-7`, Int(-7)},
		{"bool", `true`, Bool(true)},
		{"array", `[1,"a",false]`, Array{Int(1), String("a"), Bool(false)}},
		{"object", `{"a":1}`, Object{"a": Int(1)}},
		{"nested", `{"a":{"b":[2]}}`, Object{"a": Object{"b": Array{Int(2)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := UnmarshalValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestUnmarshalValueRejectsFloatsAndNull(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"float", `1.5`},
		{"exponent", `1e3`},
		{"nested float", `{"a":[0.1]}`},
		{"null", `null`},
		{"nested null", `{"a":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalValue([]byte(tt.input))
			require.Error(t, err)
		})
	}
}

func TestUnmarshalValueRoundTrip(t *testing.T) {
	original := Object{
		"BucketARN": String("arn:aws:s3:::bucket"),
		"Buffering": Object{"IntervalInSeconds": Int(300), "SizeInMBs": Int(5)},
		"Enabled":   Bool(true),
		"Tags":      Array{String("a"), String("b")},
	}

	data, err := MarshalCanonical(original)
	require.NoError(t, err)

	parsed, err := UnmarshalValue(data)
	require.NoError(t, err)
	assert.Equal(t, Value(original), parsed)
}

func TestSortedKeysAscii(t *testing.T) {
	obj := Object{"b": Int(1), "A": Int(2), "a": Int(3), "B": Int(4)}
	// Uppercase letters have lower code units than lowercase.
	assert.Equal(t, []string{"A", "B", "a", "b"}, obj.SortedKeys())
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"Name":  "raw",
		"Count": 3,
		"Done":  true,
		"Parts": []any{"x", int64(9)},
		"Tree":  Object{"k": String("v")},
	})
	require.NoError(t, err)
	assert.Equal(t, Value(Object{
		"Name":  String("raw"),
		"Count": Int(3),
		"Done":  Bool(true),
		"Parts": Array{String("x"), Int(9)},
		"Tree":  Object{"k": String("v")},
	}), v)

	_, err = FromGo(1.5)
	require.Error(t, err)
	_, err = FromGo(nil)
	require.Error(t, err)
}
