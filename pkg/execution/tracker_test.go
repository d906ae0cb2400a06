package execution

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

func TestChunkByRunes_LargeOutput(t *testing.T) {
	body := strings.Repeat("x", 200000)
	chunks := chunkByRunes(body, maxChunkChars)
	require.Len(t, chunks, 7)
	var rebuilt strings.Builder
	for i, c := range chunks {
		if i < 6 {
			assert.Len(t, []rune(c), maxChunkChars)
		}
		rebuilt.WriteString(c)
	}
	assert.Equal(t, body, rebuilt.String())
}

func TestChunkByRunes_BelowThreshold(t *testing.T) {
	chunks := chunkByRunes("short", maxChunkChars)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0])
}

func TestChunkByRunes_Empty(t *testing.T) {
	chunks := chunkByRunes("", maxChunkChars)
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0])
}

func TestChunkByRunes_UnicodeBoundary(t *testing.T) {
	body := strings.Repeat("€", 10)
	chunks := chunkByRunes(body, 3)
	require.Len(t, chunks, 4)
	for _, c := range chunks[:3] {
		assert.Equal(t, 3, len([]rune(c)))
	}
}

func TestTracker_OutputSequencing(t *testing.T) {
	out := make(chan protocol.Envelope, 16)
	tr := NewTracker(uuid.New(), out, 1, nil)

	schema := engine.Schema{Columns: []engine.Column{{Name: "a", Type: "TEXT"}}}
	tr.OnOutput("s1", protocol.OutputShow, schema, [][]any{{"v1"}, {"v2"}})
	close(out)

	var frames []protocol.Envelope
	for f := range out {
		frames = append(frames, f)
	}
	require.GreaterOrEqual(t, len(frames), 2)
	assert.Equal(t, protocol.StageOutputStart, frames[0].Payload.Kind)
	assert.Equal(t, protocol.StageOutputEnd, frames[len(frames)-1].Payload.Kind)
	for i, f := range frames[1 : len(frames)-1] {
		assert.Equal(t, protocol.StageOutputChunk, f.Payload.Kind)
		assert.Equal(t, i, f.Payload.Sequence)
	}
}

func TestTracker_Percentage(t *testing.T) {
	out := make(chan protocol.Envelope, 16)
	tr := NewTracker(uuid.New(), out, 4, nil)
	for i := 0; i < 4; i++ {
		tr.OnProgress(protocol.ProgressEvent{Kind: protocol.ProgressStageCompleted})
		f := <-out
		assert.Equal(t, (i+1)*25, *f.Progress)
	}
}

// TestTracker_ConcurrentProgressIsRaceFree mirrors Runner.runStageGroup
// spawning one goroutine per stage in a group, each calling OnProgress
// concurrently. Run with -race to confirm the counter is safe.
func TestTracker_ConcurrentProgressIsRaceFree(t *testing.T) {
	out := make(chan protocol.Envelope, 256)
	const n = 50
	tr := NewTracker(uuid.New(), out, n, nil)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.OnProgress(protocol.ProgressEvent{Kind: protocol.ProgressStageCompleted})
		}()
	}
	wg.Wait()
	close(out)

	count := 0
	for range out {
		count++
	}
	assert.Equal(t, n, count)
	assert.Equal(t, 100, tr.percent())
}
