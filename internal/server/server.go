package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"gemini-adapter-go/internal/cache"
	"gemini-adapter-go/internal/config"
	"gemini-adapter-go/internal/constants"
	"gemini-adapter-go/internal/handlers/admin"
	"gemini-adapter-go/internal/handlers/gemini"
	"gemini-adapter-go/internal/handlers/openai"
	"gemini-adapter-go/internal/keypool"
	"gemini-adapter-go/internal/middleware"
	"gemini-adapter-go/internal/models"
	"gemini-adapter-go/internal/stats"
	"gemini-adapter-go/internal/upstream"
	"gemini-adapter-go/internal/version"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Server owns the HTTP engine and the domain components behind it.
type Server struct {
	engine  *gin.Engine
	manager *config.Manager
	pool    *keypool.Pool
	monitor *stats.Monitor
}

// New wires the full gateway from configuration.
func New(manager *config.Manager) (*Server, error) {
	cfg := manager.Current()

	if !cfg.Security.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	pool := keypool.New(cfg.Pool.Credentials, keypool.CoolingConfig{
		MaxFailures:     cfg.Pool.MaxFailuresBeforeCool,
		AuthPeriod:      cfg.Pool.CoolingAuth(),
		QuotaPeriod:     cfg.Pool.CoolingQuota(),
		TransientPeriod: cfg.Pool.CoolingTransient(),
	})

	client := upstream.NewClient(cfg)
	dispatcher := upstream.NewDispatcher(pool, client, cfg)
	resolver := models.NewResolver(cfg.Models)

	var respCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		var store cache.Store
		if cfg.Cache.RedisURL != "" {
			redisStore, err := cache.NewRedisStore(cfg.Cache.RedisURL)
			if err != nil {
				return nil, err
			}
			if err := redisStore.Ping(context.Background()); err != nil {
				return nil, err
			}
			store = redisStore
			log.Info("response cache backed by redis")
		} else {
			store = cache.NewMemoryStore(cfg.Cache.MaxSize)
		}
		respCache = cache.New(store, cfg.CacheTTL())
	}

	monitor := stats.NewMonitor()

	s := &Server{
		engine:  gin.New(),
		manager: manager,
		pool:    pool,
		monitor: monitor,
	}
	s.routes(cfg, dispatcher, resolver, respCache)

	if len(cfg.Security.ClientKeys) == 0 {
		log.Warn("no client keys configured; client surfaces are open")
	}
	return s, nil
}

func (s *Server) routes(cfg *config.Config, dispatcher *upstream.Dispatcher, resolver *models.Resolver, respCache *cache.ResponseCache) {
	r := s.engine
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(s.recordStats())

	clientAuth := middleware.ClientAuth(s.manager.ClientKeys)
	adminAuth := middleware.AdminAuth(s.manager.AdminKeys)
	rateLimit := middleware.RateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	r.GET("/", s.info)
	r.GET("/health", s.health)
	r.GET("/gemini/health", s.health)

	oa := openai.NewHandler(dispatcher, resolver, respCache)
	v1 := r.Group("/v1", clientAuth, rateLimit)
	{
		v1.GET("/models", oa.Models)
		v1.POST("/chat/completions", oa.ChatCompletions)
	}

	ge := gemini.NewHandler(dispatcher, resolver, respCache)
	nat := r.Group("/gemini/v1beta", clientAuth, rateLimit)
	{
		nat.GET("/models", ge.Models)
		nat.POST("/models/*modelAction", ge.ModelAction)
	}

	ad := admin.NewHandler(s.pool, respCache, s.monitor)
	r.GET("/stats", clientAuth, ad.Stats)
	adm := r.Group("/admin", adminAuth)
	{
		adm.GET("/keys", ad.ListKeys)
		adm.POST("/keys", ad.AddKey)
		adm.DELETE("/keys/:id", ad.RemoveKey)
		adm.POST("/keys/:id/enable", ad.EnableKey)
		adm.POST("/keys/:id/disable", ad.DisableKey)
		adm.POST("/keys/:id/reset", ad.ResetKey)
		adm.POST("/cache/invalidate", ad.InvalidateCache)
	}
}

func (s *Server) recordStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.monitor.Record(route, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "gemini-adapter",
		"version": version.Version,
		"surfaces": gin.H{
			"openai": "/v1",
			"gemini": "/gemini/v1beta",
		},
	})
}

// health reports pool composition; no Active credential means the
// gateway cannot serve and answers 503.
func (s *Server) health(c *gin.Context) {
	active, cooling, disabled := s.pool.Counts()
	status := http.StatusOK
	state := "ok"
	if active == 0 {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status": state,
		"keys": gin.H{
			"active":   active,
			"cooling":  cooling,
			"disabled": disabled,
		},
	})
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Pool exposes the credential pool, mainly for tests.
func (s *Server) Pool() *keypool.Pool { return s.pool }

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.manager.Current()
	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
