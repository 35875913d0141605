// Package server exposes the engine over HTTP for the browser front end.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agenthands/ifcsync/internal/backend"
	"github.com/agenthands/ifcsync/internal/config"
	"github.com/agenthands/ifcsync/internal/core"
	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/logger"
	"github.com/agenthands/ifcsync/internal/view/viewer3d"
)

type Server struct {
	Engine   *core.Engine
	Config   config.ServerConfig
	Gatherer prometheus.Gatherer
	log      *logger.Logger
}

func NewServer(engine *core.Engine, cfg config.ServerConfig, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		Engine:   engine,
		Config:   cfg,
		Gatherer: gatherer,
		log:      log.With("component", "server"),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	if len(s.Config.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.Config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/validate", s.Validate)
	r.GET("/state", s.State)
	r.GET("/journal", s.Journal)

	viewer := r.Group("/viewer")
	viewer.POST("/pick", s.Pick)
	viewer.POST("/clear", s.ClearPick)
	viewer.POST("/frame", s.Frame)

	graph := r.Group("/graph")
	graph.GET("", s.GraphByObject)
	graph.GET("/full", s.FullGraph)
	graph.POST("/activate", s.Activate)
	graph.POST("/expand", s.Expand)
	graph.POST("/reset", s.ResetGraph)

	r.GET("/ontology-summary", s.OntologySummary)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) Validate(c *gin.Context) {
	if s.Config.MaxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.Config.MaxUploadMB<<20)
	}
	header, err := c.FormFile("ifc_file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nenhum ficheiro IFC enviado"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ficheiro IFC ilegível"})
		return
	}
	defer file.Close()

	m, err := s.Engine.Upload(c.Request.Context(), header.Filename, file)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model_id":  m.ID,
		"report":    m.Report,
		"summary":   m.Summary,
		"conflicts": m.Conflicts.Records(),
	})
}

func (s *Server) State(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) Journal(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Journal().Snapshot())
}

// PickRequest carries either normalised device coordinates or a pointer
// position with the canvas rectangle it falls in.
type PickRequest struct {
	X       *float64       `json:"x"`
	Y       *float64       `json:"y"`
	ClientX *float64       `json:"client_x"`
	ClientY *float64       `json:"client_y"`
	Rect    *viewer3d.Rect `json:"rect"`
}

func (s *Server) Pick(c *gin.Context) {
	var req PickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var x, y float64
	switch {
	case req.X != nil && req.Y != nil:
		x, y = *req.X, *req.Y
	case req.ClientX != nil && req.ClientY != nil && req.Rect != nil:
		var ok bool
		x, y, ok = viewer3d.NormalizePointer(*req.ClientX, *req.ClientY, *req.Rect)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid canvas rectangle"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing pick coordinates"})
		return
	}

	c.JSON(http.StatusOK, s.Engine.PickAt(x, y))
}

func (s *Server) ClearPick(c *gin.Context) {
	s.Engine.ClearPick()
	c.Status(http.StatusNoContent)
}

type FrameRequest struct {
	ID string `json:"id" binding:"required"`
}

func (s *Server) Frame(c *gin.Context) {
	var req FrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	id := identity.FromGUID(req.ID)
	if !s.Engine.FrameOn(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Elemento não encontrado"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) GraphByObject(c *gin.Context) {
	object := c.Query("object")
	if object == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parâmetro 'object' em falta"})
		return
	}
	if err := s.Engine.ExploreObject(c.Request.Context(), object); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Engine.Snapshot().Graph)
}

func (s *Server) FullGraph(c *gin.Context) {
	if err := s.Engine.ShowFullGraph(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Engine.Snapshot().Graph)
}

type NodeRequest struct {
	NodeURI string `json:"node_uri" binding:"required"`
}

func (s *Server) Activate(c *gin.Context) {
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.Engine.ActivateNode(c.Request.Context(), req.NodeURI); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) Expand(c *gin.Context) {
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.Engine.ExpandNode(c.Request.Context(), req.NodeURI); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Engine.Snapshot().Graph)
}

func (s *Server) ResetGraph(c *gin.Context) {
	s.Engine.ResetGraph()
	c.Status(http.StatusNoContent)
}

func (s *Server) OntologySummary(c *gin.Context) {
	summary, err := s.Engine.OntologySummary(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// fail maps engine and backend errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		reported  *backend.ReportedError
		transport *backend.TransportError
		tooLarge  *http.MaxBytesError
	)
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, core.ErrUploadInProgress):
		status = http.StatusConflict
	case errors.Is(err, core.ErrUnknownNode):
		status = http.StatusNotFound
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.As(err, &reported):
		status = http.StatusBadGateway
		msg = reported.Message
	case errors.As(err, &transport):
		status = http.StatusBadGateway
	}
	s.log.Warn("request failed", "path", c.FullPath(), "status", status, "error", err)
	c.JSON(status, gin.H{"error": msg})
}
