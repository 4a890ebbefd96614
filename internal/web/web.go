// Package web exposes mirror status and manual sync triggers over HTTP.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kal/internal/app"
	"kal/internal/config"
	appLog "kal/internal/log"
	"kal/internal/model"
	"kal/internal/reconcile"
)

const shutdownTimeout = 5 * time.Second

// Runner is the part of *app.App the server drives.
type Runner interface {
	Statuses() []app.Status
	Status(name string) (app.Status, bool)
	Preview(ctx context.Context, name string) ([]model.Event, error)
	Sync(ctx context.Context, name string, dryRun bool) (reconcile.Report, error)
}

// Server provides the HTTP API.
//
//	GET  /health
//	GET  /api/mirrors
//	GET  /api/mirrors/:name
//	GET  /api/mirrors/:name/preview
//	POST /api/mirrors/:name/sync?dry_run=1
//	GET  /api/colors
type Server struct {
	cfg    *config.Config
	runner Runner
	engine *gin.Engine
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, runner Runner) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, runner: runner, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuth guards the API group. /health stays open.
func (s *Server) basicAuth() gin.HandlerFunc {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			c.Header("WWW-Authenticate", `Basic realm="kal", charset="UTF-8"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		appLog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := s.engine.Group("/api")
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		api.Use(s.basicAuth())
	}
	api.GET("/mirrors", s.handleMirrors)
	api.GET("/mirrors/:name", s.handleMirror)
	api.GET("/mirrors/:name/preview", s.handlePreview)
	api.POST("/mirrors/:name/sync", s.handleSync)
	api.GET("/colors", handleColors)
}

func (s *Server) handleMirrors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mirrors": s.runner.Statuses()})
}

func (s *Server) handleMirror(c *gin.Context) {
	st, ok := s.runner.Status(c.Param("name"))
	if !ok {
		writeError(c, http.StatusNotFound, "unknown mirror")
		return
	}
	c.JSON(http.StatusOK, st)
}

type previewResponse struct {
	Mirror string        `json:"mirror"`
	Events []model.Event `json:"events"`
}

func (s *Server) handlePreview(c *gin.Context) {
	name := c.Param("name")
	events, err := s.runner.Preview(c.Request.Context(), name)
	if err != nil {
		s.fail(c, name, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	c.JSON(http.StatusOK, previewResponse{Mirror: name, Events: events})
}

// handleSync runs one pass synchronously and returns its report. The pass
// outlives the request: a client going away between DELETE_MANAGED and
// INSERT must not leave the calendar emptied.
func (s *Server) handleSync(c *gin.Context) {
	name := c.Param("name")
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))

	report, err := s.runner.Sync(context.WithoutCancel(c.Request.Context()), name, dryRun)
	if err != nil {
		s.fail(c, name, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type colorDTO struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Hex  string `json:"hex"`
}

func handleColors(c *gin.Context) {
	colors := model.Colors()
	out := make([]colorDTO, 0, len(colors))
	for _, col := range colors {
		out = append(out, colorDTO{Name: col.String(), ID: col.ID(), Hex: col.Hex()})
	}
	c.JSON(http.StatusOK, gin.H{"colors": out})
}

func (s *Server) fail(c *gin.Context, name string, err error) {
	switch {
	case errors.Is(err, app.ErrUnknownMirror):
		writeError(c, http.StatusNotFound, "unknown mirror")
	case errors.Is(err, app.ErrSyncInProgress):
		writeError(c, http.StatusConflict, "sync already in progress")
	default:
		appLog.Error("api request failed", err, "mirror", name, "path", c.FullPath())
		writeError(c, http.StatusBadGateway, err.Error())
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}
