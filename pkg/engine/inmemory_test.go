package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

func TestInMemoryDriver_RegistersRows(t *testing.T) {
	eng, err := NewSQLiteEngine()
	require.NoError(t, err)
	defer eng.Close()

	src := protocol.Source{
		Kind:    protocol.SourceKindInMemory,
		Name:    "in",
		Columns: []string{"a", "b"},
		Rows:    [][]any{{1, "x"}, {2, "y"}},
	}

	ctx := context.Background()
	require.NoError(t, InMemoryDriver{}.Register(ctx, eng, "in", src))

	_, rows, err := eng.Query(ctx, `SELECT "a", "b" FROM "in" ORDER BY "a"`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestInMemoryDriver_RejectsWrongDescriptorType(t *testing.T) {
	eng, err := NewSQLiteEngine()
	require.NoError(t, err)
	defer eng.Close()

	err = InMemoryDriver{}.Register(context.Background(), eng, "in", "not a source")
	require.Error(t, err)
}

func TestUnconfiguredDrivers_ReturnExplicitErrors(t *testing.T) {
	srcDriver := UnconfiguredSourceDriver{Kind: protocol.SourceKindFile}
	err := srcDriver.Register(context.Background(), nil, "x", protocol.Source{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "file")

	destDriver := UnconfiguredDestinationDriver{Kind: protocol.DestinationKindTable}
	require.Error(t, destDriver.Prepare(context.Background(), protocol.Destination{}))
	require.Error(t, destDriver.Write(context.Background(), nil, protocol.Destination{}, "t"))
}
