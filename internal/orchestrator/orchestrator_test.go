package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"

	"github.com/lucasnoah/vitestgpt/internal/logging"
	"github.com/lucasnoah/vitestgpt/internal/pipeline"
)

type fakeStage struct {
	name  string
	calls *[]string
	fn    func(pc *pipeline.Context) error
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Process(_ context.Context, pc *pipeline.Context) error {
	*s.calls = append(*s.calls, s.name)
	if s.fn != nil {
		return s.fn(pc)
	}
	return nil
}

type event struct{ stage, name string }

type fakeRecorder struct {
	events []event
	err    error
}

func (r *fakeRecorder) LogStageEvent(_, stage, name, _ string) error {
	r.events = append(r.events, event{stage, name})
	return r.err
}

func newContext() *pipeline.Context {
	return pipeline.New("a.ts", "add", "a.test.ts", pipeline.Options{SystemPrompt: "sys"})
}

func outcomes(results []StageResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Stage+":"+r.Outcome)
	}
	return out
}

func TestRun_AllStagesInOrder(t *testing.T) {
	var calls []string
	o := New(nil,
		&fakeStage{name: "setup", calls: &calls},
		&fakeStage{name: "analysis", calls: &calls},
		&fakeStage{name: "finish", calls: &calls},
	)
	pc := newContext()
	results := o.Run(context.Background(), pc)

	if diff := cmp.Diff([]string{"setup", "analysis", "finish"}, calls); diff != "" {
		t.Errorf("call order (-want +got):\n%s", diff)
	}
	if !pc.Continue {
		t.Error("Continue should remain true")
	}
	want := []string{"setup:success", "analysis:success", "finish:success"}
	if diff := cmp.Diff(want, outcomes(results)); diff != "" {
		t.Errorf("outcomes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"setup", "analysis", "finish"}, o.Stages()); diff != "" {
		t.Errorf("Stages (-want +got):\n%s", diff)
	}
}

func TestRun_HaltSkipsRemaining(t *testing.T) {
	var calls []string
	o := New(nil,
		&fakeStage{name: "analysis", calls: &calls, fn: func(pc *pipeline.Context) error {
			pc.Halt("function not found")
			return nil
		}},
		&fakeStage{name: "write", calls: &calls},
		&fakeStage{name: "finish", calls: &calls},
	)
	pc := newContext()
	results := o.Run(context.Background(), pc)

	if diff := cmp.Diff([]string{"analysis"}, calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	want := []string{"analysis:halted", "write:skipped", "finish:skipped"}
	if diff := cmp.Diff(want, outcomes(results)); diff != "" {
		t.Errorf("outcomes (-want +got):\n%s", diff)
	}
	if pc.MessageToUser != "function not found" {
		t.Errorf("message = %q", pc.MessageToUser)
	}
}

func TestRun_ErrorIsContained(t *testing.T) {
	var calls []string
	boom := errors.New("llm unavailable")
	logger, logs := logging.NewObserved(zapcore.DebugLevel)
	o := New(logger,
		&fakeStage{name: "testplan", calls: &calls, fn: func(*pipeline.Context) error { return boom }},
		&fakeStage{name: "write", calls: &calls},
	)
	pc := newContext()
	results := o.Run(context.Background(), pc)

	if pc.Continue {
		t.Error("a failing stage must set Continue=false")
	}
	if !errors.Is(results[0].Err, boom) {
		t.Errorf("result err = %v", results[0].Err)
	}
	if len(calls) != 1 {
		t.Errorf("later stages should not run: %v", calls)
	}
	if logs.FilterMessage("stage failed").Len() != 1 {
		t.Errorf("expected one failure log, got %v", logs.All())
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	var calls []string
	o := New(nil,
		&fakeStage{name: "analysis", calls: &calls, fn: func(*pipeline.Context) error { panic("nil map") }},
		&fakeStage{name: "finish", calls: &calls},
	)
	pc := newContext()
	results := o.Run(context.Background(), pc)

	if pc.Continue {
		t.Error("panic must halt the pipeline")
	}
	if results[0].Outcome != OutcomeFail || results[0].Err == nil {
		t.Errorf("unexpected result %+v", results[0])
	}
	if results[1].Outcome != OutcomeSkipped {
		t.Errorf("finish should be skipped, got %s", results[1].Outcome)
	}
}

func TestRun_AlreadyHalted(t *testing.T) {
	var calls []string
	o := New(nil, &fakeStage{name: "setup", calls: &calls})
	pc := newContext()
	pc.Continue = false

	o.Run(context.Background(), pc)
	if len(calls) != 0 {
		t.Errorf("no stage should run on a halted context, got %v", calls)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	var calls []string
	o := New(nil, &fakeStage{name: "setup", calls: &calls})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pc := newContext()
	results := o.Run(ctx, pc)
	if len(calls) != 0 {
		t.Errorf("stage ran after cancel: %v", calls)
	}
	if pc.Continue || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("expected cancellation to halt, got %+v", results[0])
	}
}

func TestRun_RecordsEvents(t *testing.T) {
	var calls []string
	rec := &fakeRecorder{err: errors.New("db locked")}
	o := New(nil,
		&fakeStage{name: "setup", calls: &calls},
		&fakeStage{name: "analysis", calls: &calls, fn: func(pc *pipeline.Context) error {
			pc.Halt("not exported")
			return nil
		}},
		&fakeStage{name: "finish", calls: &calls},
	).WithRecorder(rec)

	o.Run(context.Background(), newContext())

	want := []event{
		{"setup", "started"}, {"setup", "completed"},
		{"analysis", "started"}, {"analysis", "halted"},
		{"finish", "skipped"},
	}
	if diff := cmp.Diff(want, rec.events, cmp.AllowUnexported(event{})); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}
