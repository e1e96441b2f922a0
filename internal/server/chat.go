package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/webscout-ai/webscout/config"
	"github.com/webscout-ai/webscout/internal/agent"
	"github.com/webscout-ai/webscout/internal/telemetry"
	"github.com/webscout-ai/webscout/session"
)

const (
	defaultComparePlatforms = "booking vs airbnb"
	defaultCompareLocation  = "New York"
)

// ChatHandler bounds the latency of a single query and translates the
// agent's result into an HTTP response.
type ChatHandler struct {
	Runner     *agent.Runner
	Sessions   session.Store
	SessionTTL time.Duration
	Timeouts   config.TimeoutConfig
	Metrics    *telemetry.Telemetry
	Logger     *log.Logger
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat", h.chat)
	e.POST("/quick-compare", h.quickCompare)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	return h.run(c, "chat", req.Message, req.SessionID, h.Timeouts.Request)
}

func (h *ChatHandler) quickCompare(c echo.Context) error {
	var req QuickCompareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Platforms == "" {
		req.Platforms = c.QueryParam("platforms")
	}
	if req.Location == "" {
		req.Location = c.QueryParam("location")
	}
	if req.Platforms == "" {
		req.Platforms = defaultComparePlatforms
	}
	if req.Location == "" {
		req.Location = defaultCompareLocation
	}
	message := fmt.Sprintf(agent.QuickCompareTemplate, req.Platforms, req.Location)
	return h.run(c, "quick-compare", message, "quick", h.Timeouts.Quick)
}

// run executes one agent invocation under the route's wall-clock budget.
// On expiry with partial output the partial text is returned with a
// note; on expiry with nothing to show the caller gets a timeout error.
func (h *ChatHandler) run(c echo.Context, route, message, sessionID string, budget time.Duration) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(c.Request().Context(), budget)
	defer cancel()

	sess, err := h.Sessions.EnsureSession(ctx, sessionID, h.SessionTTL)
	if err != nil {
		h.observe(route, http.StatusInternalServerError, start)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.Logger.Printf("processing %s query (session %s)", route, sess.ID())
	res, err := h.Runner.Run(ctx, sess, message)
	for _, tool := range res.ToolsUsed {
		h.Metrics.CountToolCall(tool)
	}

	resp := ChatResponse{
		Reply:     res.Reply,
		SessionID: res.SessionID,
		ToolsUsed: res.ToolsUsed,
		ElapsedMS: time.Since(start).Milliseconds(),
		Degraded:  res.Degraded,
		Status:    "success",
	}

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		if res.Reply == "" {
			h.observe(route, http.StatusGatewayTimeout, start)
			return echo.NewHTTPError(http.StatusGatewayTimeout,
				fmt.Sprintf("request timed out after %s", budget))
		}
		resp.Reply = res.Reply + fmt.Sprintf("\n\n**Note**: request timed out after %s; showing partial results.", budget)
		resp.TimedOut = true
	default:
		h.observe(route, http.StatusInternalServerError, start)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp.ElapsedMS = time.Since(start).Milliseconds()
	h.observe(route, http.StatusOK, start)
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) observe(route string, status int, start time.Time) {
	h.Metrics.ObserveChat(route, status, time.Since(start))
}
