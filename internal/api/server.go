// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-relay/internal/command"
	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/internal/printer"
	"github.com/thereceipt/receipt-relay/internal/source"
)

// Options configures the API server
type Options struct {
	// Token, when set, is required as "Authorization: Bearer <token>"
	Token string
	// ListPorts backs /ports; defaults to printer.ListCandidates
	ListPorts command.PortLister
}

// Server is the API server
type Server struct {
	router   *gin.Engine
	queue    *printer.PrintQueue
	link     *printer.Link
	monitor  *printer.Monitor
	store    *source.Store
	executor *command.Executor
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*wsClient]struct{}
}

// NewServer creates the API server and subscribes it to queue updates.
// monitor and store may be nil; without a store uploads are refused.
func NewServer(queue *printer.PrintQueue, link *printer.Link, monitor *printer.Monitor, store *source.Store, executor *command.Executor, opts Options, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ListPorts == nil {
		opts.ListPorts = printer.ListCandidates
	}

	s := &Server{
		router:   gin.New(),
		queue:    queue,
		link:     link,
		monitor:  monitor,
		store:    store,
		executor: executor,
		opts:     opts,
		logger:   logger.With(zap.String("component", "api")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		clients: make(map[*wsClient]struct{}),
	}

	s.router.Use(recoveryMiddleware(s.logger), loggingMiddleware(s.logger), corsMiddleware())
	s.setupRoutes()

	queue.OnUpdate(s.BroadcastJob)
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := s.router.Group("/", authMiddleware(s.opts.Token))

	authed.GET("/printer", s.handleGetPrinter)
	authed.GET("/ports", s.handleGetPorts)

	authed.POST("/print/text", s.handlePrintText)
	authed.POST("/print/image", s.handlePrintImage)
	authed.POST("/print/sticker", s.handlePrintSticker)
	authed.POST("/print/qr", s.handlePrintQR)
	authed.POST("/print/barcode", s.handlePrintBarcode)
	authed.POST("/print", s.handlePrintDocument)

	authed.GET("/jobs", s.handleGetJobs)
	authed.GET("/job/:id", s.handleGetJob)

	// Command endpoint
	authed.POST("/command", s.handleCommand)

	// WebSocket
	authed.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		return srv.Shutdown(shutdownCtx)
	}
}

// statusForKind maps an error kind to the HTTP status reported for it
func statusForKind(kind string) int {
	switch kind {
	case printer.KindInvalidPayload, printer.KindDecode:
		return http.StatusUnprocessableEntity
	case printer.KindBusy:
		return http.StatusConflict
	case printer.KindIO:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// submit queues j. With ?wait=true it blocks until the job is finished and
// responds with the record, using the error kind for the status code.
func (s *Server) submit(c *gin.Context, j job.Job) {
	jobID := s.queue.Enqueue(j)

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"job_id":  jobID,
		})
		return
	}

	rec, err := s.queue.Wait(c.Request.Context(), jobID)
	if err != nil {
		// client went away or gave up; the job carries on
		c.JSON(http.StatusAccepted, gin.H{
			"success": false,
			"job_id":  jobID,
			"error":   err.Error(),
		})
		return
	}

	if rec.State == job.Failed {
		c.JSON(statusForKind(rec.ErrorKind), gin.H{
			"success": false,
			"job":     rec,
			"error":   rec.Error,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job":     rec,
	})
}
