package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/webscout-ai/webscout/config"
	"github.com/webscout-ai/webscout/internal/agent"
	"github.com/webscout-ai/webscout/internal/mcp"
	"github.com/webscout-ai/webscout/internal/telemetry"
	"github.com/webscout-ai/webscout/provider"
	"github.com/webscout-ai/webscout/session"
	"github.com/webscout-ai/webscout/session/inmemory"
	redis_session "github.com/webscout-ai/webscout/session/redis"
)

// Run wires the gateway together and serves until interrupted.
func Run(cfg *config.Config) error {
	e := newEcho(cfg)

	tele := telemetry.New()
	mcpLogger := log.New(log.Writer(), "[MCP] ", log.LstdFlags)
	manager := mcp.NewManager(cfg.MCP, cfg.BrightData, mcpLogger)
	manager.OnConnectAttempt = tele.CountConnectAttempt

	llm, err := provider.NewProvider(provider.Gemini, cfg.Gemini)
	if err != nil {
		return err
	}
	defer llm.Close()

	sessions, err := newSessionStore(cfg)
	if err != nil {
		return err
	}

	agentLogger := log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	runner := agent.NewRunner(llm, manager, agentLogger)

	sh := &StatusHandler{Cfg: cfg, MCP: manager, AgentReady: true}
	sh.Register(e)
	ch := &ChatHandler{
		Runner:     runner,
		Sessions:   sessions,
		SessionTTL: cfg.Session.TTL,
		Timeouts:   cfg.Timeouts,
		Metrics:    tele,
		Logger:     log.New(log.Writer(), "[CHAT] ", log.LstdFlags),
	}
	ch.Register(e)
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(tele.Handler()))
	}

	// Warm up the tool connection so the first chat request does not pay
	// the connect cost. Failure here is fine, chat falls back and the
	// next request retries.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MCP.ConnectTimeout)
		defer cancel()
		if tools, err := manager.EnsureReady(ctx); err == nil {
			mcpLogger.Printf("warmed up with %d tools", len(tools))
		}
	}()

	if !cfg.IsConfigured() {
		log.Printf("warning: missing credentials, tool support will be degraded")
	}

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Server.Addr()
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		manager.Shutdown()
		return err
	case <-quit:
	}

	log.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		manager.Shutdown()
		return err
	}
	manager.Shutdown()
	return nil
}

func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging.
	httpLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg, "status": "error"})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
	}))
	return e
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		if cfg.Redis.Host == "" {
			return nil, fmt.Errorf("session.backend is redis but redis.host is not configured")
		}
		rdb, err := redis_session.Conn(context.Background(), cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redis_session.NewSessionStore(rdb), nil
	default:
		return inmemory.NewSessionStore(), nil
	}
}
