package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/rezonia/invoice-engine/internal/logger"
	"github.com/rezonia/invoice-engine/internal/service"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// HeaderUserID carries the authenticated caller
const HeaderUserID = "X-User-ID"

const shutdownTimeout = 10 * time.Second

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config  *Config
	router  *gin.Engine
	service *service.Service
	decoder *ubl.Decoder
	logger  *logger.Logger
}

// NewServer creates a new API server
func NewServer(config *Config, svc *service.Service, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))
	router.Use(ErrorHandler(log))

	s := &Server{
		config:  config,
		router:  router,
		service: svc,
		decoder: ubl.NewDecoder(),
		logger:  log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/schemas", s.handleSchemas)

		invoices := v1.Group("/invoices", RequireUser())
		{
			invoices.POST("", s.handleCreate)
			invoices.POST("/validate", s.handleCreateAndValidate)
			invoices.GET("", s.handleList)
			invoices.GET("/:id", s.handleGet)
			invoices.GET("/:id/xml", s.handleGetXML)
			invoices.PUT("/:id", s.handleUpdate)
			invoices.DELETE("/:id", s.handleDelete)
			invoices.POST("/:id/share", s.handleShare)
		}

		v1.POST("/validate", RequireUser(), s.handleValidate)

		// Stateless codec helper
		v1.POST("/xml/decode", s.handleDecode)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "address", s.config.Address)
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

	s.logger.Infow("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
