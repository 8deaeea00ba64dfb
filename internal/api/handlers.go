// Package api implements the echo service operations as gin handlers.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wang-tianhao/echo-auth-service/jwtauth"
	"github.com/Wang-tianhao/echo-auth-service/requestid"
)

// MinPasswordLength is the shortest password signin accepts
const MinPasswordLength = 8

// EchoRequest is the body of POST /api/echo
type EchoRequest struct {
	Message string `json:"message"`
}

// EchoResponse is returned by POST /api/echo
type EchoResponse struct {
	Message string `json:"message"`
}

// SigninRequest is the body of POST /api/signin
type SigninRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SigninResponse carries the issued token
type SigninResponse struct {
	Token string `json:"token"`
}

// WhoamiResponse describes the authenticated caller
type WhoamiResponse struct {
	Username  string `json:"username"`
	Issuer    string `json:"issuer"`
	ExpiresAt string `json:"expires_at"`
}

// ErrorResponse is the JSON error body used by the operations
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handlers serves the echo operations
type Handlers struct {
	signer *jwtauth.Signer
	logger *slog.Logger
}

// NewHandlers creates handlers that issue tokens with signer
func NewHandlers(signer *jwtauth.Signer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{signer: signer, logger: logger}
}

// Register mounts the operations on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.POST("/echo", h.Echo)
		api.POST("/signin", h.Signin)
		api.GET("/whoami", h.Whoami)
	}
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Echo returns the message it was sent
func (h *Handlers) Echo(c *gin.Context) {
	var req EchoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "echo",
		slog.String("request_id", requestID(c)),
		slog.Int("message_len", len(req.Message)),
	)

	c.JSON(http.StatusOK, EchoResponse{Message: req.Message})
}

// Signin issues a token whose data claim is the username
func (h *Handlers) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "signin",
		slog.String("request_id", requestID(c)),
		slog.String("username", req.Username),
	)

	if len(req.Password) < MinPasswordLength {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "invalid password",
		})
		return
	}

	token, err := h.signer.Sign(req.Username)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "signing token failed",
			slog.String("request_id", requestID(c)),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "could not issue token",
		})
		return
	}

	c.JSON(http.StatusOK, SigninResponse{Token: token})
}

// Whoami returns the identity carried by the verified token
func (h *Handlers) Whoami(c *gin.Context) {
	claims, ok := jwtauth.GetClaims(c.Request.Context())
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "claims not found",
		})
		return
	}

	c.JSON(http.StatusOK, WhoamiResponse{
		Username:  claims.CustomData,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}

func requestID(c *gin.Context) string {
	id, _ := requestid.FromContext(c.Request.Context())
	return id
}
