// Package server exposes the engine over HTTP with gin.
//
// Routes:
//
//	POST /v1/meetings/stream           create or resume a meeting, SSE response
//	POST /v1/meetings/:id/human-input  submit human input
//	GET  /v1/meetings                  list live meetings
//	GET  /v1/meetings/:id              meeting snapshot
//	GET  /v1/modes                     mode catalogue
//	GET  /v1/transcripts               search archived transcripts (?q=&limit=)
//	GET  /v1/transcripts/:id           archived transcript
//	GET  /healthz                      liveness
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/meetmesh/archive"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/engine"
	"github.com/hupe1980/meetmesh/logging"
	"github.com/hupe1980/meetmesh/mode"
	"github.com/hupe1980/meetmesh/protocol"
)

// Options configures the Server.
type Options struct {
	// GinMode is passed to gin.SetMode; defaults to release.
	GinMode string
	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout time.Duration
	Logger          logging.Logger
}

// Server is the HTTP transport of an Engine.
type Server struct {
	engine *engine.Engine
	router *gin.Engine
	opts   Options
	logger logging.Logger
}

// New creates the server and registers all routes.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		GinMode:         gin.ReleaseMode,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	gin.SetMode(opts.GinMode)
	s := &Server{
		engine: e,
		router: gin.New(),
		opts:   opts,
		logger: logging.With(opts.Logger, "component", "server"),
	}
	s.router.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/v1")
	v1.POST("/meetings/stream", s.handleStream)
	v1.POST("/meetings/:id/human-input", s.handleHumanInput)
	v1.GET("/meetings", s.handleList)
	v1.GET("/meetings/:id", s.handleGet)
	v1.GET("/modes", s.handleModes)
	v1.GET("/transcripts", s.handleSearchTranscripts)
	v1.GET("/transcripts/:id", s.handleTranscript)
}

type humanInputRequest struct {
	Participant string `json:"participant" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

func (s *Server) handleStream(c *gin.Context) {
	var spec engine.MeetingSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	m, eventsCh, errorsCh, err := s.engine.StartOrResume(ctx, spec)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Meeting-ID", m.ID())
	c.Status(http.StatusOK)

	enc := protocol.NewEncoder(c.Writer, protocol.ModelName(m.Mode().Name()))
	for ev := range eventsCh {
		if err := enc.Encode(ev); err != nil {
			s.logger.Warn("Client went away", "meeting_id", m.ID(), "error", err)
			return
		}
	}

	if err, ok := <-errorsCh; ok && err != nil {
		_ = enc.EncodeError(err)
	}
	if ctx.Err() != nil {
		return
	}
	_ = enc.Done()
}

func (s *Server) handleHumanInput(c *gin.Context) {
	var req humanInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	res, err := s.engine.SubmitHumanInput(c.Request.Context(), c.Param("id"), req.Participant, req.Message)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"meetings": s.engine.List()})
}

func (s *Server) handleGet(c *gin.Context) {
	snap, err := s.engine.Get(c.Param("id"))
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modes": mode.Catalog()})
}

func (s *Server) handleSearchTranscripts(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	res, err := s.engine.SearchTranscripts(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": res})
}

func (s *Server) handleTranscript(c *gin.Context) {
	t, err := s.engine.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownSession),
		errors.Is(err, core.ErrUnknownParticipant),
		errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, core.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUpstreamModel):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// requestLogger logs one line per request through the project logger.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "meeting_id", id)
		}
		logger.Info("http request", attrs...)
	}
}
