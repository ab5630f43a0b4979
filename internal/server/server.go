package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"showroom/internal/aggregate"
	"showroom/internal/catalog"
	"showroom/internal/confirm"
	"showroom/internal/metrics"
	"showroom/internal/selection"
)

// CatalogFetcher fetches sequenced catalog snapshots for the browse view.
type CatalogFetcher interface {
	Fetch(ctx context.Context) (catalog.Snapshot, error)
}

type Server struct {
	router  *gin.Engine
	store   *selection.Store
	fetcher CatalogFetcher
	confirm *confirm.Service
	metrics *metrics.Registry
	log     *zap.Logger
}

// NewServer creates a new server instance
func NewServer(store *selection.Store, fetcher CatalogFetcher, svc *confirm.Service, reg *metrics.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), accessLog(log))

	server := &Server{
		router:  router,
		store:   store,
		fetcher: fetcher,
		confirm: svc,
		metrics: reg,
		log:     log,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.healthCheck)
		api.GET("/catalog", s.getCatalog)
		api.GET("/selection", s.getSelection)
		api.POST("/selection/adjust", s.adjust)
		api.GET("/confirmation", s.previewConfirmation)
		api.POST("/confirmation", s.confirmOrder)
	}
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// Handler exposes the router, e.g. for an http.Server or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

// Refresh fetches the catalog and reconciles the selection with it. It
// reports whether the snapshot was applied; a superseded fetch is not.
func (s *Server) Refresh(ctx context.Context) (bool, error) {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return false, err
	}
	return s.store.Reconcile(snap), nil
}

// RefreshEvery refreshes the catalog on a ticker until ctx ends.
func (s *Server) RefreshEvery(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.log.Warn("catalog refresh failed", zap.Error(err))
			}
		}
	}
}

// healthCheck endpoint for monitoring
func (s *Server) healthCheck(c *gin.Context) {
	seq, applied := s.store.Applied()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "showroom",
		"catalogApplied": applied,
		"catalogSeq":     seq,
	})
}

type selectionView struct {
	Selection     selection.Map     `json:"selection"`
	Summary       aggregate.Summary `json:"summary"`
	TotalSelected int               `json:"totalSelected"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
}

func (s *Server) view() selectionView {
	groups, sel := s.store.Groups(), s.store.Selection()
	return selectionView{
		Selection:     sel,
		Summary:       aggregate.Summarize(groups, sel),
		TotalSelected: aggregate.TotalSelected(sel),
		TotalAmount:   aggregate.TotalAmount(groups, sel),
	}
}

// getCatalog refreshes the catalog and returns it with the reconciled
// selection. When the fetch fails the last applied catalog is served, marked
// stale; with nothing applied yet the request fails.
func (s *Server) getCatalog(c *gin.Context) {
	_, err := s.Refresh(c.Request.Context())
	stale := err != nil
	if err != nil {
		s.log.Warn("catalog fetch failed", zap.Error(err))
		if _, applied := s.store.Applied(); !applied {
			c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"groups": s.store.Groups(),
		"stale":  stale,
		"view":   s.view(),
	})
}

func (s *Server) getSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.view())
}

type adjustRequest struct {
	Key   string `json:"key" binding:"required"`
	Delta int    `json:"delta"`
}

func (s *Server) adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, changed, err := s.store.Adjust(req.Key, req.Delta)
	if err != nil {
		if errors.Is(err, selection.ErrUnknownKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	v := s.view()
	c.JSON(http.StatusOK, gin.H{
		"key":           req.Key,
		"quantity":      q,
		"changed":       changed,
		"totalSelected": v.TotalSelected,
		"totalAmount":   v.TotalAmount,
	})
}

func (s *Server) previewConfirmation(c *gin.Context) {
	s.writeConfirmation(c, s.confirm.Preview)
}

func (s *Server) confirmOrder(c *gin.Context) {
	s.writeConfirmation(c, s.confirm.Confirm)
}

func (s *Server) writeConfirmation(c *gin.Context, run func(context.Context) (confirm.Confirmation, error)) {
	conf, err := run(c.Request.Context())
	if err != nil {
		if errors.Is(err, confirm.ErrNothingSelected) {
			c.JSON(http.StatusConflict, gin.H{"error": "no units selected"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conf)
}
