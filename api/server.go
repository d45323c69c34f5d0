// Package api exposes the job submission and status HTTP surface.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clipforge/pipeline"
	"clipforge/queue"
)

// JobRunner executes one pipeline pass in-process.
type JobRunner interface {
	Run(ctx context.Context, opts pipeline.Options) error
}

// Rescanner refreshes the b-roll library index.
type Rescanner interface {
	Scan(ctx context.Context) (int, error)
}

// Publisher hands jobs to remote workers. When nil, the server runs
// jobs in-process instead.
type Publisher interface {
	Publish(job *queue.Job) error
}

// Job states as reported by the status endpoint.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// JobStatus is the externally visible state of a submitted job.
type JobStatus struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Server tracks submitted jobs and routes them to a worker queue or the
// local pipeline.
type Server struct {
	runner    JobRunner
	indexer   Rescanner
	publisher Publisher
	logger    zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*JobStatus
}

// NewServer wires the HTTP layer. publisher may be nil for single-node
// deployments.
func NewServer(runner JobRunner, indexer Rescanner, publisher Publisher, logger zerolog.Logger) *Server {
	return &Server{
		runner:    runner,
		indexer:   indexer,
		publisher: publisher,
		logger:    logger.With().Str("component", "api").Logger(),
		jobs:      make(map[string]*JobStatus),
	}
}

// Router constructs a Gin engine with registered routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	g := r.Group("/api")
	g.POST("/jobs", s.handleSubmitJob)
	g.GET("/jobs/:id", s.handleJobStatus)
	g.POST("/library/rescan", s.handleRescan)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type jobRequest struct {
	URL       string   `json:"url"`
	Topic     string   `json:"topic"`
	Mode      string   `json:"mode"`
	AudioPath string   `json:"audio_path"`
	Upload    bool     `json:"upload"`
	Platforms []string `json:"platforms"`
}

// handleSubmitJob accepts a render job and returns 202 immediately; the
// work itself runs on a worker or a background goroutine.
func (s *Server) handleSubmitJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if req.Mode == "" {
		req.Mode = "viral"
	}

	job := &queue.Job{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Topic:     req.Topic,
		Mode:      req.Mode,
		AudioPath: req.AudioPath,
		Upload:    req.Upload,
		Platforms: req.Platforms,
	}
	if !job.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "viral mode requires url, story mode requires audio_path"})
		return
	}

	status := &JobStatus{
		ID:          job.ID,
		Mode:        job.Mode,
		State:       StateQueued,
		SubmittedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = status
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.Publish(job); err != nil {
			s.setState(job.ID, StateFailed, err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}
	} else {
		go s.runLocal(job)
	}

	s.logger.Info().Str("job", job.ID).Str("mode", job.Mode).Msg("job accepted")
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "state": status.State})
}

func (s *Server) runLocal(job *queue.Job) {
	s.setState(job.ID, StateRunning, "")
	err := s.runner.Run(context.Background(), pipeline.Options{
		URL:       job.URL,
		Topic:     job.Topic,
		Mode:      job.Mode,
		AudioPath: job.AudioPath,
		Upload:    job.Upload,
		Platforms: job.Platforms,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job", job.ID).Msg("job failed")
		s.setState(job.ID, StateFailed, err.Error())
		return
	}
	s.setState(job.ID, StateDone, "")
}

func (s *Server) handleJobStatus(c *gin.Context) {
	s.mu.Lock()
	status, ok := s.jobs[c.Param("id")]
	var snapshot JobStatus
	if ok {
		snapshot = *status
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleRescan refreshes the library index asynchronously and returns
// 202 Accepted immediately.
func (s *Server) handleRescan(c *gin.Context) {
	if s.indexer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no library configured"})
		return
	}
	go func() {
		if n, err := s.indexer.Scan(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("library rescan failed")
		} else {
			s.logger.Info().Int("indexed", n).Msg("library rescan finished")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "rescan started"})
}

func (s *Server) setState(id, state, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.jobs[id]; ok {
		status.State = state
		status.Error = errMsg
	}
}
