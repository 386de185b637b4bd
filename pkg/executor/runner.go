// Package executor runs gesture flows against scene documents, connecting the
// pointer simulator to recorded event traces and reports.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/clock"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/flow"
	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
)

// RunnerConfig configures the flow runner.
type RunnerConfig struct {
	Scope       any            // Passed to gesture callbacks; defaults to the document
	Clock       clock.Clock    // Tick source; nil for the wall clock
	Durations   flow.Durations // Timing defaults, overridden per flow
	AutoReset   *bool          // nil keeps the simulator default
	Touch       *bool          // nil probes the document
	StepTimeout time.Duration  // Per gesture wait; 0 = no limit beyond ctx
	Parallelism int            // Max concurrent flows in RunAll (0 = sequential)
	StopOnFail  bool           // Skip remaining flows after the first failure

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(idx int, desc string, status core.StepStatus, durationMs int64, err string)
	OnFlowEnd      func(name string, status core.StepStatus, durationMs int64)
}

// DocumentLoader returns the document a flow runs against.
type DocumentLoader func(f *flow.Flow) (*dom.Document, error)

// RunResult contains the outcome of a multi-flow run.
type RunResult struct {
	Status       core.StepStatus
	TotalFlows   int
	PassedFlows  int
	FailedFlows  int
	SkippedFlows int
	Duration     time.Duration
	Flows        []*core.FlowResult
}

// Runner orchestrates flow execution.
type Runner struct {
	config RunnerConfig
}

// New creates a new Runner.
func New(cfg RunnerConfig) *Runner {
	return &Runner{config: cfg}
}

// Run executes one flow against doc. Step failures are reported in the
// result; the error is only for unusable input.
func (r *Runner) Run(ctx context.Context, f *flow.Flow, doc *dom.Document) (*core.FlowResult, error) {
	if f == nil {
		return nil, core.ErrMissingRequired.WithMessage("no flow")
	}
	if doc == nil || doc.Root() == nil {
		return nil, core.ErrMissingRequired.WithMessage("no document")
	}
	return newFlowRunner(ctx, f, doc, r.config).Run(), nil
}

// RunAll executes flows, each against the document load returns for it,
// sequentially or with up to Parallelism flows at once. A fake clock is not
// safe to drive from several flows, so it forces sequential execution.
func (r *Runner) RunAll(ctx context.Context, flows []flow.Flow, load DocumentLoader) *RunResult {
	start := time.Now()
	results := make([]*core.FlowResult, len(flows))

	parallel := r.config.Parallelism
	if _, fake := r.config.Clock.(*clock.Fake); fake && parallel > 0 {
		logger.Debug("executor: fake clock, running %d flows sequentially", len(flows))
		parallel = 0
	}

	if parallel <= 0 {
		stop := false
		for i := range flows {
			if stop || ctx.Err() != nil {
				results[i] = skippedFlow(&flows[i], "run stopped")
				continue
			}
			results[i] = r.executeFlow(ctx, &flows[i], load, i, len(flows))
			if r.config.StopOnFail && results[i].Status == core.StatusFailed {
				stop = true
			}
		}
	} else {
		sem := make(chan struct{}, parallel)
		var wg sync.WaitGroup
		var mu sync.Mutex
		stopAll := false

		for i := range flows {
			mu.Lock()
			shouldStop := stopAll
			mu.Unlock()
			if shouldStop || ctx.Err() != nil {
				results[i] = skippedFlow(&flows[i], "run stopped")
				continue
			}

			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				sem <- struct{}{}        // Acquire
				defer func() { <-sem }() // Release

				res := r.executeFlow(ctx, &flows[idx], load, idx, len(flows))
				results[idx] = res
				if r.config.StopOnFail && res.Status == core.StatusFailed {
					mu.Lock()
					stopAll = true
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
	}

	return buildRunResult(results, time.Since(start))
}

// executeFlow loads the flow's document and runs it. A document that cannot
// be loaded fails the flow without running any step.
func (r *Runner) executeFlow(ctx context.Context, f *flow.Flow, load DocumentLoader, idx, total int) *core.FlowResult {
	name := flowName(f)
	if r.config.OnFlowStart != nil {
		r.config.OnFlowStart(idx, total, name, f.SourcePath)
	}

	var res *core.FlowResult
	doc, err := load(f)
	if err == nil {
		res, err = r.Run(ctx, f, doc)
	}
	if err != nil {
		res = skippedFlow(f, fmt.Sprintf("load document: %v", err))
		res.Status = core.StatusFailed
		logger.Error("flow %s: %v", name, err)
	}

	if r.config.OnFlowEnd != nil {
		r.config.OnFlowEnd(res.Name, res.Status, res.Duration.Milliseconds())
	}
	return res
}

// skippedFlow returns a result whose steps were all skipped.
func skippedFlow(f *flow.Flow, reason string) *core.FlowResult {
	res := &core.FlowResult{
		Name:      flowName(f),
		FilePath:  f.SourcePath,
		Tags:      f.Config.Tags,
		Status:    core.StatusSkipped,
		StartTime: time.Now(),
		Error:     reason,
	}
	for i, step := range f.Steps {
		res.Steps = append(res.Steps, skippedResult(i, step, res.StartTime))
	}
	res.ComputeSummary()
	return res
}

func buildRunResult(flows []*core.FlowResult, d time.Duration) *RunResult {
	res := &RunResult{
		Status:     core.StatusPassed,
		TotalFlows: len(flows),
		Duration:   d,
		Flows:      flows,
	}
	for _, f := range flows {
		switch f.Status {
		case core.StatusPassed, core.StatusWarned:
			res.PassedFlows++
		case core.StatusSkipped:
			res.SkippedFlows++
		default:
			res.FailedFlows++
		}
	}
	if res.FailedFlows > 0 {
		res.Status = core.StatusFailed
	}
	return res
}
