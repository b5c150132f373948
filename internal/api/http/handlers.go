package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luminadash/backend/internal/client"
	"github.com/luminadash/backend/internal/infrastructure/monitoring"
	"github.com/luminadash/backend/internal/logging"
	"github.com/luminadash/backend/internal/queue"
	"github.com/luminadash/backend/internal/shared/id"
)

// Handlers holds HTTP handler dependencies
type Handlers struct {
	queue     *queue.Queue
	client    *client.Client
	metrics   *monitoring.Metrics
	logger    *logging.Logger
	startTime time.Time
}

// NewHandlers creates the handler set. client and metrics may be nil.
func NewHandlers(q *queue.Queue, cl *client.Client, metrics *monitoring.Metrics, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		queue:     q,
		client:    cl,
		metrics:   metrics,
		logger:    logger.Named("http"),
		startTime: time.Now(),
	}
}

// SubmitJobRequest is the payload for POST /jobs
type SubmitJobRequest struct {
	Kind      string          `json:"kind" binding:"required"`
	Payload   json.RawMessage `json:"payload"`
	Priority  *int            `json:"priority"`
	DelayMS   int64           `json:"delay_ms"`
	TimeoutMS int64           `json:"timeout_ms"`
}

func (r SubmitJobRequest) options() []queue.SubmitOption {
	var opts []queue.SubmitOption
	if r.Priority != nil {
		opts = append(opts, queue.WithPriority(*r.Priority))
	}
	if r.DelayMS > 0 {
		opts = append(opts, queue.WithDelay(time.Duration(r.DelayMS)*time.Millisecond))
	}
	if r.TimeoutMS > 0 {
		opts = append(opts, queue.WithTimeout(time.Duration(r.TimeoutMS)*time.Millisecond))
	}
	return opts
}

// SubmitJob handles POST /jobs
func (h *Handlers) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job request: " + err.Error()})
		return
	}

	j, err := h.queue.Submit(c.Request.Context(), req.Kind, req.Payload, req.options()...)
	if err != nil {
		if errors.Is(err, queue.ErrUnknownWorkKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("job submission failed", zap.String("kind", req.Kind), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, j)
}

// GetJob handles GET /jobs/:id
func (h *Handlers) GetJob(c *gin.Context) {
	j, err := h.queue.GetResult(id.JobID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, j)
}

// WaitJob handles GET /jobs/:id/wait?timeout_ms=
func (h *Handlers) WaitJob(c *gin.Context) {
	timeout := 30 * time.Second
	if ms := c.Query("timeout_ms"); ms != "" {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeout_ms must be a positive integer"})
			return
		}
		timeout = time.Duration(v) * time.Millisecond
	}

	j, err := h.queue.WaitFor(c.Request.Context(), id.JobID(c.Param("id")), timeout, 0)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, j)
	case errors.Is(err, queue.ErrJobFailed):
		// Terminal result; the failure detail is on the job record.
		c.JSON(http.StatusOK, j)
	case errors.Is(err, queue.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrWaitTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// DeleteJob handles DELETE /jobs/:id
func (h *Handlers) DeleteJob(c *gin.Context) {
	jobID := id.JobID(c.Param("id"))
	if !h.queue.Delete(jobID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found: " + jobID.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": jobID})
}

// BatchRequest is the payload for POST /jobs/batch
type BatchRequest struct {
	Jobs []SubmitJobRequest `json:"jobs" binding:"required"`
}

// CreateBatch handles POST /jobs/batch
func (h *Handlers) CreateBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch request: " + err.Error()})
		return
	}
	if len(req.Jobs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch must contain at least one job"})
		return
	}

	specs := make([]queue.JobSpec, len(req.Jobs))
	for i, item := range req.Jobs {
		specs[i] = queue.JobSpec{Kind: item.Kind, Payload: item.Payload, Options: item.options()}
	}

	batch := h.queue.CreateBatch(c.Request.Context(), specs)

	rejected := make([]gin.H, len(batch.Errors))
	for i, e := range batch.Errors {
		rejected[i] = gin.H{"index": e.Index, "kind": e.Kind, "error": e.Err.Error()}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"batch_id": batch.ID,
		"jobs":     batch.Jobs,
		"rejected": rejected,
	})
}

// BatchStatusRequest is the payload for POST /jobs/batch/status
type BatchStatusRequest struct {
	JobIDs []string `json:"job_ids" binding:"required"`
}

// BatchStatus handles POST /jobs/batch/status
func (h *Handlers) BatchStatus(c *gin.Context) {
	var req BatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status request: " + err.Error()})
		return
	}

	jobIDs := make([]id.JobID, len(req.JobIDs))
	for i, s := range req.JobIDs {
		jobIDs[i] = id.JobID(s)
	}

	c.JSON(http.StatusOK, h.queue.MonitorBatch(jobIDs))
}

// CleanupJobs handles DELETE /jobs/cleanup?older_than_ms=
func (h *Handlers) CleanupJobs(c *gin.Context) {
	maxAge := time.Hour
	if ms := c.Query("older_than_ms"); ms != "" {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_ms must be a non-negative integer"})
			return
		}
		maxAge = time.Duration(v) * time.Millisecond
	}

	c.JSON(http.StatusOK, gin.H{"removed": h.queue.Cleanup(maxAge)})
}

// ListKinds handles GET /jobs/kinds
func (h *Handlers) ListKinds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kinds": h.queue.Registry().Kinds()})
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	stats := h.queue.Stats()
	jobs := make(map[string]int, len(stats))
	for status, count := range stats {
		jobs[string(status)] = count
	}

	resp := gin.H{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"jobs":           jobs,
	}
	if h.client != nil {
		breakers := make(map[string]string)
		for _, target := range h.client.Targets() {
			if state, err := h.client.BreakerState(target); err == nil {
				breakers[target] = state.String()
			}
		}
		resp["dependencies"] = breakers
	}

	c.JSON(http.StatusOK, resp)
}

// Root handles GET /
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "luminadash-backend",
		"status":  "running",
	})
}
