// Package api serves the operator status endpoints. The API is
// read-only JSON; trading is driven entirely by the control loop.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"forex-trading-bot/internal/bot"
	"forex-trading-bot/internal/cache"
	"forex-trading-bot/internal/database"
	"forex-trading-bot/internal/events"
	"forex-trading-bot/internal/setups"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowOrigins   []string `json:"allow_origins"`
}

// Server wraps the gin router and its dependencies.
type Server struct {
	router   *gin.Engine
	cfg      ServerConfig
	bot      *bot.Bot
	bus      *events.EventBus
	cacheSvc *cache.Service
	db       *database.DB
	seq      *setups.Sequencer
	log      zerolog.Logger
	httpSrv  *http.Server
}

// NewServer creates the status API server. cacheSvc, db and seq may
// each be nil when the corresponding backend is disabled.
func NewServer(cfg ServerConfig, b *bot.Bot, bus *events.EventBus, cacheSvc *cache.Service, db *database.DB, seq *setups.Sequencer, log zerolog.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:   router,
		cfg:      cfg,
		bot:      b,
		bus:      bus,
		cacheSvc: cacheSvc,
		db:       db,
		seq:      seq,
		log:      log.With().Str("component", "api").Logger(),
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/setups", s.handleSetups)
		apiGroup.GET("/events", s.handleEvents)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if s.cacheSvc != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.cacheSvc.Ping(pingCtx); err != nil {
			health["status"] = "degraded"
			health["cache_error"] = err.Error()
		}
		health["cache"] = s.cacheSvc.GetStats()
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{"bot": s.bot.Status()}
	if s.seq != nil {
		status["setups_today"] = s.seq.TodaySequence(c.Request.Context())
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleSetups(c *gin.Context) {
	views := s.bot.Setups()
	out := gin.H{
		"count":  len(views),
		"setups": views,
	}
	if s.db != nil {
		journal, err := s.db.OpenSetups(c.Request.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("journal open setups query failed")
		} else if journal != nil {
			out["journal"] = journal
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	recent := s.bus.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(recent),
		"events": recent,
	})
}

// Start runs the HTTP server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.log.Info().Str("addr", addr).Msg("status api listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("status api stopped")
		}
	}()
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
