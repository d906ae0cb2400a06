package execution

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

// maxChunkChars is the chunk size used to split formatted stage output,
// measured in Unicode scalar values (runes), never splitting a code point.
// A source constant, tunable if the wire's frame-size guard changes.
const maxChunkChars = 32000

// ProgressTracker is the capability the pipeline runner drives to report
// lifecycle events and stage debug output.
type ProgressTracker interface {
	OnProgress(event protocol.ProgressEvent)
	OnOutput(stageName string, outputType protocol.OutputType, schema engine.Schema, rows [][]any)
}

// Tracker streams ProgressEvents and chunked StageOutputMessages for one
// execution onto its output channel. Percentage is computed from a fixed
// total step count known up front from the pipeline's shape.
type Tracker struct {
	id        uuid.UUID
	out       chan<- protocol.Envelope
	total     int
	completed atomic.Int64
	log       *slog.Logger
}

// NewTracker builds a Tracker for totalSteps = num_sources + 2*num_stages +
// (1 if destination present else 0), per spec.md §4.3.
func NewTracker(id uuid.UUID, out chan<- protocol.Envelope, totalSteps int, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{id: id, out: out, total: totalSteps, log: log}
}

func (t *Tracker) percent() int {
	if t.total <= 0 {
		return 100
	}
	completed := t.completed.Load()
	pct := int(math.Round(float64(completed) / float64(t.total) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// OnProgress increments the completed-step counter and emits a ProgressUpdate.
// Stages within a group run concurrently (Runner.runStageGroup), so the
// counter must be atomic rather than a plain int per spec.md §4.3.
func (t *Tracker) OnProgress(event protocol.ProgressEvent) {
	t.completed.Add(1)
	t.send(protocol.ProgressUpdate(t.id, t.percent(), event))
}

// OnOutput emits OutputStart, the formatted content split into
// maxChunkChars-rune chunks, then OutputEnd.
func (t *Tracker) OnOutput(stageName string, outputType protocol.OutputType, schema engine.Schema, rows [][]any) {
	t.send(protocol.StageOutput(t.id, stageName, protocol.StageOutputMessage{
		Kind:   protocol.StageOutputStart,
		Header: outputType.Banner(stageName),
	}))

	body := formatOutput(outputType, schema, rows)
	for seq, chunk := range chunkByRunes(body, maxChunkChars) {
		t.send(protocol.StageOutput(t.id, stageName, protocol.StageOutputMessage{
			Kind:     protocol.StageOutputChunk,
			Sequence: seq,
			Body:     chunk,
		}))
	}

	t.send(protocol.StageOutput(t.id, stageName, protocol.StageOutputMessage{
		Kind: protocol.StageOutputEnd,
	}))
}

// send is fire-and-forget: a full channel (an unresponsive or disconnected
// consumer) drops the frame rather than blocking the pipeline run.
func (t *Tracker) send(env protocol.Envelope) {
	select {
	case t.out <- env:
	default:
		t.log.Warn("dropped outbound frame: output channel full", "execution_id", t.id, "type", env.Type)
	}
}

// chunkByRunes splits s into chunks of at most size Unicode scalar values.
// An empty string still yields one empty chunk, matching the "below
// threshold produces exactly one OutputChunk" boundary for outputs that
// format to nothing (e.g. print_schema on an empty schema).
func chunkByRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	var chunks []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// formatOutput renders a stage's debug directive into human-readable text.
func formatOutput(outputType protocol.OutputType, schema engine.Schema, rows [][]any) string {
	if outputType == protocol.OutputPrintSchema {
		var b strings.Builder
		for _, c := range schema.Columns {
			fmt.Fprintf(&b, "%s: %s\n", c.Name, c.Type)
		}
		return b.String()
	}
	return prettyTable(schema, rows)
}

// prettyTable renders a schema + rows as a simple space-padded text table.
func prettyTable(schema engine.Schema, rows [][]any) string {
	if len(schema.Columns) == 0 {
		return ""
	}
	widths := make([]int, len(schema.Columns))
	cells := make([][]string, len(rows))
	for i, c := range schema.Columns {
		widths[i] = len(c.Name)
	}
	for ri, row := range rows {
		cells[ri] = make([]string, len(row))
		for ci, v := range row {
			s := fmt.Sprintf("%v", v)
			cells[ri][ci] = s
			if ci < len(widths) && len(s) > widths[ci] {
				widths[ci] = len(s)
			}
		}
	}

	var b strings.Builder
	writeRow := func(values []string) {
		for i, v := range values {
			if i > 0 {
				b.WriteString(" | ")
			}
			fmt.Fprintf(&b, "%-*s", widths[i], v)
		}
		b.WriteByte('\n')
	}
	header := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		header[i] = c.Name
	}
	writeRow(header)
	for _, row := range cells {
		writeRow(row)
	}
	return b.String()
}
