// Package protocol defines the pipeline data model and the wire messages
// exchanged between a client or orchestrator and the executor.
package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// Aqueduct is an immutable pipeline definition carried in an ExecutionRequest.
type Aqueduct struct {
	Sources     []Source    `json:"sources"`
	Stages      [][]Stage   `json:"stages"`
	Destination *Destination `json:"destination,omitempty"`
}

// Validate checks the invariants spec.md §3 places on an Aqueduct: stage
// names must be unique across the whole pipeline.
func (a Aqueduct) Validate() error {
	seen := make(map[string]struct{})
	for _, group := range a.Stages {
		for _, s := range group {
			if s.Name == "" {
				return fmt.Errorf("stage name must not be empty")
			}
			if _, dup := seen[s.Name]; dup {
				return fmt.Errorf("duplicate stage name %q", s.Name)
			}
			seen[s.Name] = struct{}{}
		}
	}
	return nil
}

// Stage is one node of SQL logic within a stage group.
type Stage struct {
	Name           string `json:"name"`
	Query          string `json:"query"`
	Show           *int   `json:"show,omitempty"`
	Explain        bool   `json:"explain,omitempty"`
	ExplainAnalyze bool   `json:"explain_analyze,omitempty"`
	PrintSchema    bool   `json:"print_schema,omitempty"`
}

// SourceKind discriminates the tagged Source variants.
type SourceKind string

const (
	SourceKindInMemory  SourceKind = "in_memory"
	SourceKindFile      SourceKind = "file"
	SourceKindDirectory SourceKind = "directory"
	SourceKindTable     SourceKind = "table"
	SourceKindDatabase  SourceKind = "database"
)

// Source is an opaque, tagged descriptor of a pipeline input. Only the
// fields relevant to its Kind are populated; the control plane never
// interprets them beyond routing to the matching driver.
type Source struct {
	Kind SourceKind `json:"kind"`
	Name string     `json:"name"`

	// SourceInMemory
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`

	// SourceFile / SourceDirectory
	Format   string `json:"format,omitempty"`
	Location string `json:"location,omitempty"`

	// SourceDirectory
	PartitionColumns []string `json:"partition_columns,omitempty"`

	// SourceTable
	TableFormat string `json:"table_format,omitempty"`

	// SourceDatabase
	ConnectionString string `json:"connection_string,omitempty"`
	Query            string `json:"query,omitempty"`
}

// DestinationKind discriminates the tagged Destination variants.
type DestinationKind string

const (
	DestinationKindFile     DestinationKind = "file"
	DestinationKindTable    DestinationKind = "table"
	DestinationKindDatabase DestinationKind = "database"
)

// WriteMode controls how a destination driver handles existing data.
type WriteMode string

const (
	WriteModeAppend    WriteMode = "append"
	WriteModeOverwrite WriteMode = "overwrite"
	WriteModeUpsert    WriteMode = "upsert"
)

// Destination is an opaque, tagged descriptor of a pipeline output.
type Destination struct {
	Kind DestinationKind `json:"kind"`

	// DestinationFile
	Format     string `json:"format,omitempty"`
	Location   string `json:"location,omitempty"`
	SingleFile bool   `json:"single_file,omitempty"`

	// DestinationTable / DestinationDatabase
	TableFormat      string    `json:"table_format,omitempty"`
	WriteMode        WriteMode `json:"write_mode,omitempty"`
	PartitionColumns []string  `json:"partition_columns,omitempty"`

	// DestinationDatabase
	ConnectionString string `json:"connection_string,omitempty"`
	Table            string `json:"table,omitempty"`
}

// NewExecutionID allocates a fresh opaque execution identifier.
func NewExecutionID() uuid.UUID {
	return uuid.New()
}
