package execution

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

// Runner sequences source registration, parallel stage-group execution with
// TTL-based table deregistration, and destination writeout, reporting
// progress through a ProgressTracker.
type Runner struct {
	drivers *engine.DriverRegistry
}

// NewRunner builds a Runner that resolves source/destination descriptors
// through drivers.
func NewRunner(drivers *engine.DriverRegistry) *Runner {
	return &Runner{drivers: drivers}
}

// TotalSteps computes the fixed step count a Tracker needs up front:
// num_sources + 2*num_stages + (1 if destination present).
func TotalSteps(pipeline protocol.Aqueduct) int {
	total := len(pipeline.Sources)
	for _, group := range pipeline.Stages {
		total += 2 * len(group)
	}
	if pipeline.Destination != nil {
		total++
	}
	return total
}

// Run executes pipeline against a fresh embedded engine instance, reporting
// lifecycle events through tracker. Any step's failure propagates
// immediately; no partial retry and no compensating deregistration is
// attempted.
func (r *Runner) Run(ctx context.Context, pipeline protocol.Aqueduct, tracker ProgressTracker) error {
	// A job cancelled while still queued reaches here with an already-done
	// ctx (Manager.Cancel trips the job's own context before the worker ever
	// spawns it). Bail out before emitting anything so a cancel-while-queued
	// execution produces no progress_update frames at all, per spec.md §8.
	if err := ctx.Err(); err != nil {
		return err
	}

	eng, err := engine.NewSQLiteEngine()
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer eng.Close()

	start := time.Now()
	tracker.OnProgress(protocol.ProgressEvent{Kind: protocol.ProgressStarted})

	if pipeline.Destination != nil {
		dd := r.drivers.DestinationDriver(pipeline.Destination.Kind)
		if err := dd.Prepare(ctx, *pipeline.Destination); err != nil {
			return fmt.Errorf("prepare destination: %w", err)
		}
	}

	if err := r.registerSources(ctx, eng, pipeline.Sources, tracker); err != nil {
		return err
	}

	ttls := computeTTLs(pipeline.Stages)

	for pos, group := range pipeline.Stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runStageGroup(ctx, eng, group, pos, tracker); err != nil {
			return err
		}
		deregisterGroup(ctx, eng, ttls, pos)
	}

	if pipeline.Destination != nil && len(pipeline.Stages) > 0 {
		lastGroup := pipeline.Stages[len(pipeline.Stages)-1]
		lastStage := lastGroup[len(lastGroup)-1]
		dd := r.drivers.DestinationDriver(pipeline.Destination.Kind)
		if err := dd.Write(ctx, eng, *pipeline.Destination, lastStage.Name); err != nil {
			return fmt.Errorf("write destination: %w", err)
		}
		_ = eng.Deregister(ctx, lastStage.Name)
		tracker.OnProgress(protocol.ProgressEvent{Kind: protocol.ProgressDestinationWritten})
	}

	tracker.OnProgress(protocol.ProgressEvent{
		Kind:       protocol.ProgressCompleted,
		DurationMS: time.Since(start).Milliseconds(),
	})
	return nil
}

// registerSources runs one driver call per source concurrently, awaits all,
// emits SourceRegistered for every success (in pipeline order), then
// returns the first error if any source failed.
func (r *Runner) registerSources(ctx context.Context, eng engine.Engine, sources []protocol.Source, tracker ProgressTracker) error {
	errs := make([]error, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src protocol.Source) {
			defer wg.Done()
			driver := r.drivers.SourceDriver(src.Kind)
			errs[i] = driver.Register(ctx, eng, src.Name, src)
		}(i, src)
	}
	wg.Wait()

	for i, src := range sources {
		if errs[i] == nil {
			tracker.OnProgress(protocol.ProgressEvent{Kind: protocol.ProgressSourceRegistered, Name: src.Name})
		}
	}
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("register source %q: %w", sources[i].Name, err)
		}
	}
	return nil
}

// runStageGroup runs every stage in group concurrently. A single failure
// fails the group but does not pre-empt siblings: they run to completion or
// failure regardless.
func (r *Runner) runStageGroup(ctx context.Context, eng engine.Engine, group []protocol.Stage, pos int, tracker ProgressTracker) error {
	errs := make([]error, len(group))
	var wg sync.WaitGroup
	for sub, stage := range group {
		wg.Add(1)
		go func(sub int, stage protocol.Stage) {
			defer wg.Done()
			errs[sub] = r.runStage(ctx, eng, stage, pos, sub, tracker)
		}(sub, stage)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, eng engine.Engine, stage protocol.Stage, pos, sub int, tracker ProgressTracker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	tracker.OnProgress(protocol.ProgressEvent{
		Kind: protocol.ProgressStageStarted, StageName: stage.Name, Position: pos, SubPos: sub,
	})

	if stage.Explain || stage.ExplainAnalyze {
		schema, rows, err := eng.Explain(ctx, stage.Query, stage.ExplainAnalyze)
		if err != nil {
			return fmt.Errorf("explain stage %q: %w", stage.Name, err)
		}
		ot := protocol.OutputExplain
		if stage.ExplainAnalyze {
			ot = protocol.OutputExplainAnalyze
		}
		tracker.OnOutput(stage.Name, ot, schema, rows)
	}

	schema, rows, err := eng.Query(ctx, stage.Query)
	if err != nil {
		return fmt.Errorf("execute stage %q: %w", stage.Name, err)
	}

	if stage.Show != nil {
		limited := rows
		ot := protocol.OutputShowLimit
		if *stage.Show == 0 {
			ot = protocol.OutputShow
		} else if len(rows) > *stage.Show {
			limited = rows[:*stage.Show]
		}
		tracker.OnOutput(stage.Name, ot, schema, limited)
	}

	if stage.PrintSchema {
		tracker.OnOutput(stage.Name, protocol.OutputPrintSchema, schema, nil)
	}

	if err := eng.RegisterRows(ctx, stage.Name, schema, rows); err != nil {
		return fmt.Errorf("materialize stage %q: %w", stage.Name, err)
	}

	tracker.OnProgress(protocol.ProgressEvent{
		Kind: protocol.ProgressStageCompleted, StageName: stage.Name, Position: pos, SubPos: sub,
		DurationMS: time.Since(start).Milliseconds(),
	})
	return nil
}

type positionedStage struct {
	pos   int
	stage protocol.Stage
}

// computeTTLs implements spec.md §4.4 step 4: for each stage at position
// pos, the TTL is the largest position of any later stage whose query
// mentions the stage's name at a whitespace- or delimiter-bounded boundary,
// or pos+1 if no later stage references it.
func computeTTLs(groups [][]protocol.Stage) map[string]int {
	var flat []positionedStage
	for pos, group := range groups {
		for _, s := range group {
			flat = append(flat, positionedStage{pos: pos, stage: s})
		}
	}

	ttls := make(map[string]int, len(flat))
	for i, ps := range flat {
		pattern := regexp.MustCompile(`\s` + regexp.QuoteMeta(ps.stage.Name) + `(\s|;|\n|\)|\.|$)`)
		ttl := ps.pos + 1
		for j := i + 1; j < len(flat); j++ {
			if flat[j].pos <= ps.pos {
				continue
			}
			if pattern.MatchString(" " + flat[j].stage.Query) {
				ttl = flat[j].pos
			}
		}
		ttls[ps.stage.Name] = ttl
	}
	return ttls
}

// deregisterGroup drops every registered table whose TTL equals pos.
func deregisterGroup(ctx context.Context, eng engine.Engine, ttls map[string]int, pos int) {
	for name, ttl := range ttls {
		if ttl == pos {
			_ = eng.Deregister(ctx, name)
		}
	}
}
