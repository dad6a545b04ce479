package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SamFrieman/c2-beacon-detector/internal/config"
	"github.com/SamFrieman/c2-beacon-detector/internal/detect"
	"github.com/SamFrieman/c2-beacon-detector/internal/intel"
	"github.com/SamFrieman/c2-beacon-detector/internal/metrics"
	"github.com/SamFrieman/c2-beacon-detector/internal/ml"
	"github.com/SamFrieman/c2-beacon-detector/internal/models"
	"github.com/SamFrieman/c2-beacon-detector/internal/normalize"
	"github.com/SamFrieman/c2-beacon-detector/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Store is what the server needs from the persistence layer; both
// RedisStore and MemoryStore satisfy it.
type Store interface {
	LoadRules(ctx context.Context) ([]models.CustomRule, error)
	SaveRule(ctx context.Context, rule models.CustomRule) error
	DeleteRule(ctx context.Context, id string) error
	AppendResult(ctx context.Context, result *models.DetectionResult) error
	RecentResults(ctx context.Context, n int) ([]*models.DetectionResult, error)
}

type Server struct {
	store   Store
	engine  *detect.Engine
	router  *gin.Engine
	logger  *slog.Logger
	metrics *metrics.Metrics

	wsMu      sync.Mutex
	wsClients map[*websocket.Conn]bool
}

func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	var store Store
	if cfg.Redis.Enabled {
		rs, err := storage.NewRedisStore(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.History.Cap)
		if err != nil {
			return nil, err
		}
		store = rs
	} else {
		logger.Info("redis disabled, using in-memory store")
		store = storage.NewMemoryStore(cfg.History.Cap)
	}

	m := metrics.New(nil)

	var feed intel.FeedClient
	if cfg.Intel.FeedURL != "" {
		feed = intel.NewHTTPFeed(cfg.Intel.FeedURL, cfg.Intel.APIKey, cfg.Intel.LookupTimeout.Std())
	}
	resolver := intel.NewResolver(feed, store, intel.Config{
		MaxLookups:    cfg.Intel.MaxLookups,
		LookupTimeout: cfg.Intel.LookupTimeout.Std(),
		CacheTTL:      cfg.Intel.CacheTTL.Std(),
	}, logger)

	ensemble := ml.NewEnsemble()
	ensemble.Threshold = cfg.Scoring.ConfidenceThreshold

	engine := detect.NewEngine(logger,
		detect.WithResolver(resolver),
		detect.WithScorer(ensemble),
		detect.WithHistory(store),
		detect.WithMetrics(m),
	)

	s := &Server{
		store:     store,
		engine:    engine,
		router:    gin.Default(),
		logger:    logger,
		metrics:   m,
		wsClients: make(map[*websocket.Conn]bool),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/analyze", s.analyze)
		api.GET("/history", s.getHistory)
		api.GET("/rules", s.getRules)
		api.POST("/rules", s.createRule)
		api.DELETE("/rules/:id", s.deleteRule)
		api.GET("/health", s.health)
	}
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// analyze runs the full pipeline on an uploaded connection document.
func (s *Server) analyze(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	raw, err := normalize.ParseDocument(body)
	if err != nil {
		s.metrics.InputErrorsTotal.Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conns, err := normalize.Connections(raw)
	if err != nil {
		s.metrics.InputErrorsTotal.Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.Analyze(c.Request.Context(), conns)
	if err != nil {
		s.metrics.InputErrorsTotal.Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.broadcast(map[string]any{"type": "result", "payload": result})
	c.JSON(http.StatusOK, result)
}

func (s *Server) getHistory(c *gin.Context) {
	results, err := s.store.RecentResults(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) getRules(c *gin.Context) {
	rules, err := s.store.LoadRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (s *Server) createRule(c *gin.Context) {
	var rule models.CustomRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rule.Type != models.RuleTypeIP && rule.Type != models.RuleTypeCIDR {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule type must be ip or cidr"})
		return
	}
	if rule.Value == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule value is required"})
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Confidence <= 0 {
		rule.Confidence = 70
	}
	rule.Created = time.Now().UTC()

	if err := s.store.SaveRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	if err := s.store.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleWebSocket streams completed analysis results to clients.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.wsMu.Lock()
	s.wsClients[conn] = true
	s.wsMu.Unlock()
	defer func() {
		s.wsMu.Lock()
		delete(s.wsClients, conn)
		s.wsMu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(message any) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	for client := range s.wsClients {
		if err := client.WriteJSON(message); err != nil {
			client.Close()
			delete(s.wsClients, client)
		}
	}
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	logger.Info("beacon detector listening", "addr", cfg.Server.Addr)
	if err := server.router.Run(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
