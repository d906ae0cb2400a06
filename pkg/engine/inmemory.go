package engine

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

// InMemoryDriver registers a protocol.Source whose rows are carried directly
// in the request (the cheapest source variant, and the one exercised most
// heavily by tests).
type InMemoryDriver struct{}

func (InMemoryDriver) Register(ctx context.Context, eng Engine, name string, source any) error {
	src, ok := source.(protocol.Source)
	if !ok {
		return fmt.Errorf("in-memory driver: unexpected descriptor type %T", source)
	}
	schema := Schema{Columns: make([]Column, len(src.Columns))}
	for i, c := range src.Columns {
		schema.Columns[i] = Column{Name: c, Type: "TEXT"}
	}
	return eng.RegisterRows(ctx, name, schema, src.Rows)
}

// UnconfiguredSourceDriver reports that no concrete driver was wired for a
// given source kind, preserving the "drivers implement the contract"
// framing without silently no-oping.
type UnconfiguredSourceDriver struct{ Kind protocol.SourceKind }

func (d UnconfiguredSourceDriver) Register(ctx context.Context, eng Engine, name string, source any) error {
	return fmt.Errorf("no source driver configured for kind %q (name=%q)", d.Kind, name)
}

// UnconfiguredDestinationDriver is the destination-side counterpart.
type UnconfiguredDestinationDriver struct{ Kind protocol.DestinationKind }

func (d UnconfiguredDestinationDriver) Prepare(ctx context.Context, dest any) error {
	return fmt.Errorf("no destination driver configured for kind %q", d.Kind)
}

func (d UnconfiguredDestinationDriver) Write(ctx context.Context, eng Engine, dest any, table string) error {
	return fmt.Errorf("no destination driver configured for kind %q", d.Kind)
}
