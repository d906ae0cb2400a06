package engine

import "github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"

// DriverRegistry routes source/destination descriptors to their concrete
// drivers by Kind. Providers are injected at construction time; the runner
// never consults global state to resolve one (spec.md §9 explicitly rules
// out a process-wide plugin registry).
type DriverRegistry struct {
	sources      map[protocol.SourceKind]SourceDriver
	destinations map[protocol.DestinationKind]DestinationDriver
}

// NewDriverRegistry builds a registry with the InMemoryDriver wired and every
// other known kind mapped to an Unconfigured stub, so lookups never panic.
func NewDriverRegistry() *DriverRegistry {
	r := &DriverRegistry{
		sources:      make(map[protocol.SourceKind]SourceDriver),
		destinations: make(map[protocol.DestinationKind]DestinationDriver),
	}
	r.sources[protocol.SourceKindInMemory] = InMemoryDriver{}
	for _, k := range []protocol.SourceKind{protocol.SourceKindFile, protocol.SourceKindDirectory, protocol.SourceKindTable, protocol.SourceKindDatabase} {
		r.sources[k] = UnconfiguredSourceDriver{Kind: k}
	}
	for _, k := range []protocol.DestinationKind{protocol.DestinationKindFile, protocol.DestinationKindTable, protocol.DestinationKindDatabase} {
		r.destinations[k] = UnconfiguredDestinationDriver{Kind: k}
	}
	return r
}

// RegisterSourceDriver overrides the driver used for a source kind.
func (r *DriverRegistry) RegisterSourceDriver(kind protocol.SourceKind, d SourceDriver) {
	r.sources[kind] = d
}

// RegisterDestinationDriver overrides the driver used for a destination kind.
func (r *DriverRegistry) RegisterDestinationDriver(kind protocol.DestinationKind, d DestinationDriver) {
	r.destinations[kind] = d
}

func (r *DriverRegistry) SourceDriver(kind protocol.SourceKind) SourceDriver {
	if d, ok := r.sources[kind]; ok {
		return d
	}
	return UnconfiguredSourceDriver{Kind: kind}
}

func (r *DriverRegistry) DestinationDriver(kind protocol.DestinationKind) DestinationDriver {
	if d, ok := r.destinations[kind]; ok {
		return d
	}
	return UnconfiguredDestinationDriver{Kind: kind}
}
