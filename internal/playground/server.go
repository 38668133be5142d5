package playground

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alucardeht/typeline/internal/logger"
	"github.com/alucardeht/typeline/internal/runner"
	"github.com/alucardeht/typeline/internal/textenc"
	"github.com/alucardeht/typeline/internal/vdoc"
)

var log = logger.ForComponent("playground")

const (
	maxSnippetBytes = 256 * 1024
	checkTimeout    = 30 * time.Second
)

type Config struct {
	Addr    string
	SiteDir string

	// Binary is the resolved checker executable the playground runs
	// snippets through.
	Binary string
}

type Server struct {
	config Config
	engine *gin.Engine
}

type checkRequest struct {
	Code string `json:"code" binding:"required"`
}

type checkResponse struct {
	Errors   []runner.CheckError `json:"errors"`
	Duration string              `json:"duration"`
}

type shareRequest struct {
	Name string `json:"name"`
	Code string `json:"code" binding:"required"`
}

type shareResponse struct {
	URI string `json:"uri"`
}

func New(config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: config,
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestLogger())

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/api/check", s.handleCheck)
	s.engine.POST("/api/share", s.handleShare)
	s.engine.GET("/api/snippet", s.handleSnippet)

	if config.SiteDir != "" {
		s.engine.NoRoute(s.serveSite)
	}

	return s
}

func (s *Server) Run() error {
	log.Info("playground listening", "addr", s.config.Addr)
	return s.engine.Run(s.config.Addr)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		start := time.Now()

		c.Next()

		log.Debug("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCheck type-checks one submitted snippet by writing it to a scratch
// file and running the checker over it.
func (s *Server) handleCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Code) > maxSnippetBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "snippet too large"})
		return
	}

	code := textenc.Normalize([]byte(req.Code))

	started := time.Now()
	diags, err := s.checkSnippet(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if diags == nil {
		diags = []runner.CheckError{}
	}

	c.JSON(http.StatusOK, checkResponse{
		Errors:   diags,
		Duration: time.Since(started).String(),
	})
}

func (s *Server) checkSnippet(ctx context.Context, code string) ([]runner.CheckError, error) {
	scratch, err := os.MkdirTemp("", "typeline-playground-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	snippet := filepath.Join(scratch, "snippet.py")
	if err := os.WriteFile(snippet, []byte(code), 0600); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.config.Binary, "check", "--output-format", "json", snippet)
	cmd.Dir = scratch

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err = cmd.Run()
	if err != nil {
		// Exit 1 means type errors were found; that is a normal response.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != runner.ExitErrors {
			return nil, err
		}
	}

	diags, err := runner.ParseDiagnostics(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	// The scratch path is meaningless to the caller.
	for i := range diags {
		diags[i].Path = "snippet.py"
	}
	return diags, nil
}

// handleShare mints a typeline: URI carrying the snippet so a playground
// state fits in a link.
func (s *Server) handleShare(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := req.Name
	if name == "" {
		name = "snippet.py"
	}

	// Normalize on the way in; the codec itself is a pure round trip.
	c.JSON(http.StatusOK, shareResponse{URI: vdoc.Encode(name, textenc.Normalize([]byte(req.Code)))})
}

func (s *Server) handleSnippet(c *gin.Context) {
	uri := c.Query("uri")
	if uri == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing uri parameter"})
		return
	}

	code, err := vdoc.Decode(uri)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, _ := vdoc.Name(uri)
	c.JSON(http.StatusOK, gin.H{"name": name, "code": code})
}

func (s *Server) serveSite(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		c.Status(http.StatusNotFound)
		return
	}

	path := filepath.Join(s.config.SiteDir, filepath.Clean("/"+c.Request.URL.Path))
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		path = filepath.Join(s.config.SiteDir, "index.html")
	}
	c.File(path)
}
