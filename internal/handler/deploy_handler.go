package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/artifact"
	"paas-deployer/internal/pkg/logger"
)

// Deployer runs one deployment, see service.DeployService.
type Deployer interface {
	Deploy(ctx context.Context, req *model.DeployRequest, sink logger.Sink) (*model.DeployResult, error)
}

type DeployHandler struct {
	ctx      context.Context
	deployer Deployer
	tasks    *TaskStore
	root     string
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewDeployHandler runs deployments under ctx, so cancelling it aborts
// deployments still in flight. Request paths must stay inside root.
func NewDeployHandler(ctx context.Context, deployer Deployer, tasks *TaskStore, root string, allowedOrigins []string, log *logger.Logger) *DeployHandler {
	return &DeployHandler{
		ctx:      ctx,
		deployer: deployer,
		tasks:    tasks,
		root:     root,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		logger:   log,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (h *DeployHandler) Deploy(c *gin.Context) {
	var req model.DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid deploy request", "error", err)
		badRequest(c, err)
		return
	}

	workspace, err := confine(h.root, req.Workspace, req.DeploymentPath, req.ControlDir)
	if err != nil {
		h.logger.Warnw("deploy request outside workspace root", "root", h.root, "error", err)
		c.JSON(statusFor(err), model.ErrorResponse{Success: false, Message: err.Error()})
		return
	}
	req.Workspace = workspace

	task := h.tasks.Create()
	task.Info("Deployment started")
	sink := logger.Multi(task, logger.NewZapSink(logger.New(h.logger.Desugar().With(zap.String("task", task.ID)))))

	go func() {
		result, err := h.deployer.Deploy(h.ctx, &req, sink)
		task.Finish(result, err)
	}()

	c.JSON(http.StatusOK, model.DeployResponse{
		Success: true,
		TaskID:  task.ID,
		Message: "Deployment started",
	})
}

func (h *DeployHandler) Progress(c *gin.Context) {
	task := h.tasks.Get(c.Param("taskId"))
	if task == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Success: false, Message: "Task not found"})
		return
	}
	c.JSON(http.StatusOK, task.Snapshot())
}

// Logs streams the task log over a WebSocket: existing lines first, then
// new ones as they arrive. The socket is closed once the task finishes.
func (h *DeployHandler) Logs(c *gin.Context) {
	task := h.tasks.Get(c.Param("taskId"))
	if task == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Success: false, Message: "Task not found"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "task", task.ID, "error", err)
		return
	}
	defer ws.Close()

	// reads only to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	next := 0
	for {
		lines, done, changed := task.LinesSince(next)
		for _, line := range lines {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				h.logger.Debugw("WebSocket write error", "task", task.ID, "error", err)
				return
			}
		}
		next += len(lines)

		if done {
			status := task.Snapshot().Status
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, status)
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		select {
		case <-changed:
		case <-gone:
			return
		case <-h.ctx.Done():
			return
		}
	}
}

// Resolve reports which artifacts a deployment path selects without
// contacting any application.
func (h *DeployHandler) Resolve(c *gin.Context) {
	var req model.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mode, err := model.ParseDeployMode(req.Mode)
	if err != nil {
		badRequest(c, err)
		return
	}

	baseDir, err := confine(h.root, req.BaseDir, req.DeploymentPath)
	if err != nil {
		c.JSON(statusFor(err), model.ResolveResponse{Success: false, Message: err.Error()})
		return
	}

	rec := logger.NewRecorder(nil)
	resolver := &artifact.Resolver{BaseDir: baseDir, Sink: rec}
	ref, err := resolver.Resolve(req.DeploymentPath, mode)
	if err != nil {
		c.JSON(statusFor(err), model.ResolveResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ResolveResponse{
		Success:   true,
		Artifacts: ref.Locations,
	})
}
