package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aimerfeng/DecideLink/internal/config"
	"github.com/aimerfeng/DecideLink/internal/logging"
	"github.com/aimerfeng/DecideLink/internal/middleware"
	"github.com/aimerfeng/DecideLink/internal/monitoring"
	"github.com/aimerfeng/DecideLink/internal/premium"
	"github.com/aimerfeng/DecideLink/internal/quota"
	"github.com/aimerfeng/DecideLink/internal/relay"
	"github.com/gin-gonic/gin"
)

// APIServer represents the main API server
type APIServer struct {
	config   *config.Config
	router   *gin.Engine
	guard    *quota.Guard
	relay    *relay.Service
	verifier *premium.Verifier
}

// NewAPIServer creates a new API server instance. The usage store is
// injected so deployments can choose between the in-memory table and
// the shared Redis counter.
func NewAPIServer(cfg *config.Config, store quota.Store) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:   cfg,
		router:   router,
		guard:    quota.NewGuard(store, cfg.Quota.FreeDailyLimit),
		relay:    relay.NewService(&cfg.Vendors),
		verifier: premium.NewVerifier(cfg.Premium.Codes, cfg.Premium.EntitlementDays),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		api.POST("/ask", s.handleAsk)
		api.POST("/verifycode", s.handleVerifyCode)
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// sourceAddr returns the request's observed source address: the first
// forwarded-for value, else the real-IP header, else "unknown"
func sourceAddr(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := c.GetHeader("X-Real-IP"); real != "" {
		return real
	}
	return "unknown"
}

// handleAsk relays a decision request to the vendor after the quota
// check. Every failure path is converted to a JSON envelope; no error
// escapes the handler.
func (s *APIServer) handleAsk(c *gin.Context) {
	var req relay.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "message": err.Error()})
		return
	}

	// Field checks: prompt before deviceId
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing prompt"})
		return
	}
	if req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing deviceId"})
		return
	}

	deviceKey := quota.DeviceKey(req.DeviceID, sourceAddr(c))

	decision, count, err := s.guard.CheckAndConsume(c.Request.Context(), deviceKey, req.IsPremium)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "message": err.Error()})
		return
	}
	if !req.IsPremium {
		monitoring.RecordQuotaDecision(decision == quota.Allowed)
		logging.LogQuotaDecision(c.GetString("request_id"), deviceKey, decision == quota.Allowed, count)
	}
	if decision == quota.Denied {
		// 200 with a sentinel error field, not an HTTP error, so the
		// client UI can special-case it without treating it as a
		// transport failure.
		c.JSON(http.StatusOK, gin.H{
			"error":   "limit_reached",
			"message": fmt.Sprintf("⚠️ You have already used %d free tries today.", s.guard.Limit()),
		})
		return
	}

	body, err := s.relay.Ask(c.Request.Context(), &req)
	if err != nil {
		var upErr *relay.UpstreamError
		switch {
		case errors.Is(err, relay.ErrMissingAPIKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing API key"})
		case errors.As(err, &upErr):
			c.JSON(upErr.StatusCode, gin.H{"error": "Upstream API error", "details": upErr.Body})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "message": err.Error()})
		}
		return
	}

	// Vendor body passes through unmodified; the client parses the
	// embedded completion text itself.
	c.Data(http.StatusOK, "application/json", body)
}

// verifyCodeRequest is the code redemption payload
type verifyCodeRequest struct {
	Code string `json:"code"`
}

// handleVerifyCode validates a premium activation code
func (s *APIServer) handleVerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Server error"})
		return
	}

	ent, ok := s.verifier.Verify(req.Code)
	monitoring.RecordCodeVerification(ok)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"expiry":  ent.Expiry.UTC().Format(time.RFC3339),
		"message": "Premium activated",
	})
}
