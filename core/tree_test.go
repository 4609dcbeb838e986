package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructTree(t *testing.T) {
	app := NewApp()
	stack, err := NewStack(app, "ingest")
	require.NoError(t, err)

	stream, err := NewConstruct(stack, "Delivery", nil)
	require.NoError(t, err)
	role, err := NewConstruct(stream, "S3DestinationRole", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Delivery"}, stream.Path())
	assert.Equal(t, []string{"Delivery", "S3DestinationRole"}, role.Path())

	// logical ID is a pure function of the path
	assert.Equal(t, role.LogicalID(), role.LogicalID())
	assert.NotEqual(t, stream.LogicalID(), role.LogicalID())
}

func TestConstructDuplicateID(t *testing.T) {
	app := NewApp()
	stack, err := NewStack(app, "ingest")
	require.NoError(t, err)

	_, err = NewConstruct(stack, "Delivery", nil)
	require.NoError(t, err)
	_, err = NewConstruct(stack, "Delivery", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConstructEmptyID(t *testing.T) {
	app := NewApp()
	stack, err := NewStack(app, "ingest")
	require.NoError(t, err)

	_, err = NewConstruct(stack, "", nil)
	require.Error(t, err)
}

func TestConstructChildrenOrder(t *testing.T) {
	app := NewApp()
	stack, err := NewStack(app, "ingest")
	require.NoError(t, err)

	for _, id := range []string{"c", "a", "b"} {
		_, err := NewConstruct(stack, id, nil)
		require.NoError(t, err)
	}

	var got []string
	for _, child := range stack.Node().Children() {
		got = append(got, child.ID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestStackPathExcludesStack(t *testing.T) {
	app := NewApp()
	stack, err := NewStack(app, "ingest")
	require.NoError(t, err)

	c, err := NewConstruct(stack, "Bucket", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bucket"}, c.Path())
}
