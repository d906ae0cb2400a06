package protocol

// ProgressEventKind discriminates the ProgressEvent tagged variants. The
// total order in which they are emitted for a single execution is fixed by
// the pipeline runner: Started, SourceRegistered*, (StageStarted,
// StageCompleted)* per stage, an optional DestinationCompleted, Completed.
type ProgressEventKind string

const (
	ProgressStarted            ProgressEventKind = "started"
	ProgressSourceRegistered   ProgressEventKind = "source_registered"
	ProgressStageStarted       ProgressEventKind = "stage_started"
	ProgressStageCompleted     ProgressEventKind = "stage_completed"
	ProgressDestinationWritten ProgressEventKind = "destination_completed"
	ProgressCompleted          ProgressEventKind = "completed"
)

// ProgressEvent is one lifecycle notification from the pipeline runner.
// Fields not relevant to Kind are left zero.
type ProgressEvent struct {
	Kind ProgressEventKind `json:"kind"`

	// SourceRegistered
	Name string `json:"name,omitempty"`

	// StageStarted / StageCompleted
	StageName string `json:"stage_name,omitempty"`
	Position  int    `json:"position,omitempty"`
	SubPos    int    `json:"sub_position,omitempty"`

	// StageCompleted / Completed
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// OutputType names the kind of debug directive that produced a StageOutputMessage.
type OutputType string

const (
	OutputShow           OutputType = "show"
	OutputShowLimit      OutputType = "show_limit"
	OutputExplain        OutputType = "explain"
	OutputExplainAnalyze OutputType = "explain_analyze"
	OutputPrintSchema    OutputType = "print_schema"
)

// Banner returns the human-readable header used as an OutputStart.Header.
func (t OutputType) Banner(stageName string) string {
	switch t {
	case OutputShow:
		return "results of stage \"" + stageName + "\""
	case OutputShowLimit:
		return "limited results of stage \"" + stageName + "\""
	case OutputExplain:
		return "query plan for stage \"" + stageName + "\""
	case OutputExplainAnalyze:
		return "analyzed query plan for stage \"" + stageName + "\""
	case OutputPrintSchema:
		return "schema of stage \"" + stageName + "\""
	default:
		return stageName
	}
}

// StageOutputMessageKind discriminates the StageOutputMessage tagged variants.
type StageOutputMessageKind string

const (
	StageOutputStart StageOutputMessageKind = "output_start"
	StageOutputChunk StageOutputMessageKind = "output_chunk"
	StageOutputEnd   StageOutputMessageKind = "output_end"
)

// StageOutputMessage is one frame of a chunked stage output stream.
type StageOutputMessage struct {
	Kind StageOutputMessageKind `json:"kind"`

	// OutputStart
	Header string `json:"header,omitempty"`

	// OutputChunk
	Sequence int    `json:"sequence,omitempty"`
	Body     string `json:"body,omitempty"`

	// OutputEnd
	Footer string `json:"footer,omitempty"`
}
