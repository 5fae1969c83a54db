package handler

import (
	"io"
	"sync"

	"github.com/google/uuid"

	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/logger"
)

const (
	StatusDeploying = "deploying"
	StatusSuccess   = "success"
	StatusError     = "error"
)

// Task is one asynchronous deployment. It is the deployment's log sink and
// keeps every line for polling and streaming clients.
type Task struct {
	ID string

	log *logger.Logger
	w   io.Writer

	mu       sync.Mutex
	progress model.ProgressResponse
	changed  chan struct{}
}

func newTask(id string, log *logger.Logger) *Task {
	t := &Task{
		ID:  id,
		log: log,
		progress: model.ProgressResponse{
			Success: true,
			Status:  StatusDeploying,
			Logs:    []string{},
		},
		changed: make(chan struct{}),
	}
	t.w = logger.NewLineWriter(t.Info)
	return t
}

func (t *Task) Info(msg string) {
	t.log.Infow(msg, "task", t.ID)
	t.update(func(p *model.ProgressResponse) {
		p.Logs = append(p.Logs, msg)
	})
}

func (t *Task) Error(msg string) {
	t.log.Errorw(msg, "task", t.ID)
	t.update(func(p *model.ProgressResponse) {
		p.Logs = append(p.Logs, "ERROR: "+msg)
	})
}

func (t *Task) Writer() io.Writer { return t.w }

func (t *Task) Progress(stage string, percent int) {
	t.update(func(p *model.ProgressResponse) {
		p.Progress = float64(percent)
	})
}

// Finish records the outcome. Streaming clients see the task as done
// afterwards.
func (t *Task) Finish(result *model.DeployResult, err error) {
	t.update(func(p *model.ProgressResponse) {
		if err != nil {
			p.Success = false
			p.Status = StatusError
			p.Error = err.Error()
			return
		}
		p.Status = StatusSuccess
		p.Progress = 100
		if result != nil {
			p.URL = result.ApplicationURL
		}
	})
}

func (t *Task) Snapshot() model.ProgressResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.progress
	p.Logs = append([]string(nil), t.progress.Logs...)
	return p
}

// LinesSince returns log lines from index from on, whether the task has
// finished and a channel closed on the next change.
func (t *Task) LinesSince(from int) ([]string, bool, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lines []string
	if from < len(t.progress.Logs) {
		lines = append(lines, t.progress.Logs[from:]...)
	}
	return lines, t.progress.Status != StatusDeploying, t.changed
}

func (t *Task) update(fn func(*model.ProgressResponse)) {
	t.mu.Lock()
	fn(&t.progress)
	close(t.changed)
	t.changed = make(chan struct{})
	t.mu.Unlock()
}

// TaskStore keeps tasks in memory for the lifetime of the agent.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	log   *logger.Logger
}

func NewTaskStore(log *logger.Logger) *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
		log:   log,
	}
}

func (s *TaskStore) Create() *Task {
	t := newTask(uuid.New().String(), s.log)
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t
}

func (s *TaskStore) Get(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}
