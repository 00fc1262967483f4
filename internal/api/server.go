package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lokalarchiv/internal/backfill"
	"lokalarchiv/internal/cache"
	"lokalarchiv/internal/config"
	"lokalarchiv/internal/ingest"
	"lokalarchiv/internal/models"
	"lokalarchiv/internal/notifier"
	"lokalarchiv/internal/query"
	"lokalarchiv/internal/security"
	"lokalarchiv/internal/storage"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router   *gin.Engine
	store    storage.Storage
	ingester *ingest.Ingester
	scraper  *backfill.Scraper
	engine   *query.Engine
	notifier *notifier.Notifier
	cache    *cache.Manager
	cacheTTL time.Duration
	port     int
}

func NewServer(store storage.Storage, ingester *ingest.Ingester, scraper *backfill.Scraper, engine *query.Engine, n *notifier.Notifier, cacheManager *cache.Manager, cfg *config.Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	// Setup security middleware
	securityConfig := &security.SecurityConfig{
		EnableRateLimit:       cfg.Security.EnableRateLimit,
		RateLimitPerSecond:    cfg.Security.RateLimitPerSecond,
		RateLimitBurst:        cfg.Security.RateLimitBurst,
		EnableCORS:            cfg.Security.EnableCORS,
		AllowedOrigins:        cfg.Security.AllowedOrigins,
		EnableSecurityHeaders: cfg.Security.EnableSecurityHeaders,
		MaxRequestSize:        cfg.Security.MaxRequestSize,
		EnableRequestID:       cfg.Security.EnableRequestID,
	}
	security.SetupSecurityMiddleware(router, securityConfig)

	server := &Server{
		router:   router,
		store:    store,
		ingester: ingester,
		scraper:  scraper,
		engine:   engine,
		notifier: n,
		cache:    cacheManager,
		cacheTTL: cfg.CacheTTL,
		port:     cfg.Port,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// API routes
	api := s.router.Group("/api/v1")
	{
		api.POST("/ingest", s.runIngest)
		api.POST("/backfill/:date", s.backfillDay)
		api.POST("/backfill", s.backfillRange)
		api.GET("/search", s.search)
		api.GET("/candidates", s.candidates)
		api.POST("/candidates/notify", s.notifyCandidates)
		api.GET("/stats", s.getStats)
	}
}

func (s *Server) Start() error {
	return s.router.Run(":" + strconv.Itoa(s.port))
}

// StartWithContext runs the HTTP server until the context is canceled, then
// shuts it down gracefully
func (s *Server) StartWithContext(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(s.port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	count, err := s.store.CountArticles()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "lokalarchiv",
		"articles": count,
	})
}

func (s *Server) runIngest(c *gin.Context) {
	report := s.ingester.Run()

	// Any write run may change query results
	s.cache.Flush()

	c.JSON(http.StatusOK, report)
}

func (s *Server) backfillDay(c *gin.Context) {
	date := c.Param("date")

	report, err := s.scraper.BackfillDay(date)
	if err != nil {
		respondError(c, err)
		return
	}

	s.cache.Flush()
	c.JSON(http.StatusOK, report)
}

func (s *Server) backfillRange(c *gin.Context) {
	start := c.Query("start")
	end := c.Query("end")

	report, err := s.scraper.BackfillRange(start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	s.cache.Flush()
	c.JSON(http.StatusOK, report)
}

func (s *Server) search(c *gin.Context) {
	term := c.Query("q")
	from := c.Query("from")
	to := c.Query("to")
	limit := parseLimit(c.Query("limit"))

	cacheKey := cache.QueryKey("search", term, from, to, limit)
	if cached, found := s.cache.Get(cacheKey); found {
		if results, ok := cached.([]models.ArticleSummary); ok {
			c.JSON(http.StatusOK, gin.H{
				"query":   term,
				"count":   len(results),
				"results": results,
			})
			return
		}
	}

	results, err := s.engine.Search(term, limit, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	s.cache.Set(cacheKey, results, s.cacheTTL)
	c.JSON(http.StatusOK, gin.H{
		"query":   term,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) candidates(c *gin.Context) {
	topic := c.Query("topic")
	from := c.Query("from")
	to := c.Query("to")
	limit := parseLimit(c.Query("limit"))

	results, fallback, err := s.candidatesWithFallback(topic, limit, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topic":      topic,
		"count":      len(results),
		"fallback":   fallback,
		"candidates": results,
	})
}

// candidatesWithFallback applies the caller-level policy: when a topic was
// supplied and the candidate query comes up empty, fall back to plain search
func (s *Server) candidatesWithFallback(topic string, limit int, from, to string) ([]models.ArticleSummary, bool, error) {
	cacheKey := cache.QueryKey("candidates", topic, from, to, limit)
	if cached, found := s.cache.Get(cacheKey); found {
		if entry, ok := cached.(candidateEntry); ok {
			return entry.Results, entry.Fallback, nil
		}
	}

	results, err := s.engine.Candidates(topic, limit, from, to)
	if err != nil {
		return nil, false, err
	}

	fallback := false
	if len(results) == 0 && topic != "" {
		results, err = s.engine.Search(topic, limit, from, to)
		if err != nil {
			return nil, false, err
		}
		fallback = true
	}

	s.cache.Set(cacheKey, candidateEntry{Results: results, Fallback: fallback}, s.cacheTTL)
	return results, fallback, nil
}

type candidateEntry struct {
	Results  []models.ArticleSummary
	Fallback bool
}

func (s *Server) notifyCandidates(c *gin.Context) {
	topic := c.Query("topic")
	from := c.Query("from")
	to := c.Query("to")
	limit := parseLimit(c.Query("limit"))

	results, fallback, err := s.candidatesWithFallback(topic, limit, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	digest := query.RenderDigest(results)

	if !s.notifier.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "no webhook URL configured",
			"digest": digest,
		})
		return
	}

	if err := s.notifier.Send(digest); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"digest": digest,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Digest delivered",
		"count":    len(results),
		"fallback": fallback,
		"digest":   digest,
	})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.store.GetDatabaseStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// respondError maps validation errors to 400 and everything else to 500
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Msg,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": err.Error(),
	})
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0
	}
	return limit
}
