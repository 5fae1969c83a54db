package service

import (
	"context"

	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/artifact"
	"paas-deployer/internal/pkg/logger"
)

// State is the last step a deployment strategy completed.
type State string

const (
	StateInit      State = "INIT"
	StateCloned    State = "CLONED"
	StateCleaned   State = "CLEANED"
	StatePopulated State = "POPULATED"
	StateCommitted State = "COMMITTED"
	StatePushed    State = "PUSHED"
	StateConnected State = "CONNECTED"
	StateUploaded  State = "UPLOADED"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// Job is one strategy run. State is updated as steps complete; on failure
// it is StateFailed and FailedAfter holds the last completed state.
type Job struct {
	App           model.TargetApplication
	Artifacts     artifact.Reference
	Workdir       string
	Cartridges    []string
	ControlDir    string
	Markers       []string
	CommitMessage string
	Sink          logger.Sink

	State       State
	FailedAfter State
}

// Strategy publishes a resolved artifact set to a target application.
type Strategy interface {
	Deploy(ctx context.Context, job *Job) error
}

// ProgressSink is implemented by sinks that track coarse progress, such as
// the HTTP agent's task store.
type ProgressSink interface {
	Progress(stage string, percent int)
}

// trackedSink records deployment lines and forwards progress to the
// caller's sink when it accepts progress.
type trackedSink struct {
	*logger.Recorder
	progress ProgressSink
}

func newTrackedSink(sink logger.Sink) *trackedSink {
	t := &trackedSink{Recorder: logger.NewRecorder(sink)}
	if p, ok := sink.(ProgressSink); ok {
		t.progress = p
	}
	return t
}

func (t *trackedSink) Progress(stage string, percent int) {
	if t.progress != nil {
		t.progress.Progress(stage, percent)
	}
}

func reportProgress(sink logger.Sink, stage string, percent int) {
	if p, ok := sink.(ProgressSink); ok {
		p.Progress(stage, percent)
	}
}

func (j *Job) advance(s State) {
	j.State = s
}

func (j *Job) fail() {
	j.FailedAfter = j.State
	j.State = StateFailed
}
