// Package orchestrator runs an ordered chain of stages over one pipeline
// context.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/pipeline"
)

// Stage is one step of the chain. Process may return an error or panic; both
// are contained by the orchestrator and halt the context.
type Stage interface {
	Name() string
	Process(ctx context.Context, pc *pipeline.Context) error
}

// Recorder persists stage lifecycle events. Failures to record are ignored.
type Recorder interface {
	LogStageEvent(runID, stage, event, detail string) error
}

// Stage outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFail    = "fail"
	OutcomeHalted  = "halted"
)

// StageResult describes what happened to a single stage.
type StageResult struct {
	Stage    string
	Outcome  string
	Duration time.Duration
	Err      error
}

// Orchestrator holds an immutable, ordered list of stages.
type Orchestrator struct {
	stages   []Stage
	logger   *zap.Logger
	recorder Recorder
}

// New creates an Orchestrator. The order of stages is fixed at construction.
func New(logger *zap.Logger, stages ...Stage) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stages: append([]Stage(nil), stages...),
		logger: logger,
	}
}

// WithRecorder returns a copy of o that reports stage events to r.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	cp := *o
	cp.recorder = r
	return &cp
}

// Stages returns the stage names in execution order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name()
	}
	return names
}

// Run passes pc through every stage in order. Once pc.Continue is false the
// remaining stages are skipped. A stage error, panic, or a cancelled ctx
// halts pc; nothing escapes past a stage boundary.
func (o *Orchestrator) Run(ctx context.Context, pc *pipeline.Context) []StageResult {
	results := make([]StageResult, 0, len(o.stages))
	for _, s := range o.stages {
		name := s.Name()
		if !pc.Continue {
			o.logger.Debug("skipping stage", zap.String("stage", name))
			o.record(pc.ID, name, "skipped", "")
			results = append(results, StageResult{Stage: name, Outcome: OutcomeSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			pc.Halt(fmt.Sprintf("interrupted before %s: %v", name, err))
			o.record(pc.ID, name, "interrupted", err.Error())
			results = append(results, StageResult{Stage: name, Outcome: OutcomeFail, Err: err})
			continue
		}

		o.logger.Info("stage started", zap.String("stage", name))
		o.record(pc.ID, name, "started", "")
		start := time.Now()
		err := o.process(ctx, s, pc)
		res := StageResult{Stage: name, Duration: time.Since(start), Err: err}

		switch {
		case err != nil:
			pc.Continue = false
			res.Outcome = OutcomeFail
			o.logger.Error("stage failed", zap.String("stage", name), zap.Error(err))
			o.record(pc.ID, name, "failed", err.Error())
		case !pc.Continue:
			res.Outcome = OutcomeHalted
			o.logger.Warn("stage halted pipeline",
				zap.String("stage", name),
				zap.String("message", pc.MessageToUser))
			o.record(pc.ID, name, "halted", pc.MessageToUser)
		default:
			res.Outcome = OutcomeSuccess
			o.logger.Info("stage completed", zap.String("stage", name), zap.Duration("took", res.Duration))
			o.record(pc.ID, name, "completed", "")
		}
		results = append(results, res)
	}
	return results
}

func (o *Orchestrator) process(ctx context.Context, s Stage, pc *pipeline.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stage panicked",
				zap.String("stage", s.Name()),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("stage %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Process(ctx, pc)
}

func (o *Orchestrator) record(runID, stage, event, detail string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.LogStageEvent(runID, stage, event, detail); err != nil {
		o.logger.Warn("record stage event", zap.String("stage", stage), zap.Error(err))
	}
}
