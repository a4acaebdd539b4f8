package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cdecaire/desperse-public-sub002/core"
	"github.com/cdecaire/desperse-public-sub002/service"
)

// Handlers contains HTTP handlers for the auth and download endpoints
type Handlers struct {
	downloads *service.DownloadService
	sessions  *service.SIWSService
	log       zerolog.Logger
}

// NewHandlers creates new handlers
func NewHandlers(downloads *service.DownloadService, sessions *service.SIWSService, log zerolog.Logger) *Handlers {
	return &Handlers{
		downloads: downloads,
		sessions:  sessions,
		log:       log,
	}
}

// statusFor maps a protocol error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "VALIDATION_ERROR", "MESSAGE_MALFORMED", "MESSAGE_MISMATCH", "MESSAGE_EXPIRED":
		return http.StatusBadRequest
	case "INVALID_SIGNATURE", "NONCE_INVALID", "NO_PENDING_CHALLENGE",
		"NONCE_MISMATCH", "CHALLENGE_EXPIRED", "TOKEN_INVALID", "SESSION_INVALID":
		return http.StatusUnauthorized
	case "NOT_OWNER":
		return http.StatusForbidden
	case "ASSET_NOT_FOUND":
		return http.StatusNotFound
	case "ASSET_NOT_GATED":
		return http.StatusConflict
	case "ORACLE_UNAVAILABLE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	code := core.Code(err)
	if code == "INTERNAL" {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(statusFor(code), gin.H{"error": code})
}

// Challenge issues a sign-in challenge for a wallet
func (h *Handlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR"})
		return
	}

	ch, err := h.sessions.GenerateChallenge(c.Request.Context(), req.Address)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":   ch.Nonce,
		"message": ch.Message,
	})
}

// Login verifies a signed challenge and opens a session
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Message   string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR"})
		return
	}

	grant, err := h.sessions.Login(c.Request.Context(), req.Address, req.Signature, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": grant.Token,
		"token_type":   "Bearer",
		"expires_at":   grant.ExpiresAt.UTC().Format(time.RFC3339),
		"is_new":       grant.IsNew,
		"user": gin.H{
			"id":           grant.User.ID,
			"display_name": grant.User.DisplayName,
		},
	})
}

// DownloadNonce issues a download challenge for a gated asset
func (h *Handlers) DownloadNonce(c *gin.Context) {
	var req struct {
		Wallet string `json:"wallet" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR"})
		return
	}

	ch, err := h.downloads.RequestNonce(c.Request.Context(), c.Param("id"), req.Wallet)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      ch.Nonce,
		"message":    ch.Message,
		"expires_at": ch.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// DownloadToken verifies a signed download challenge and issues a token
func (h *Handlers) DownloadToken(c *gin.Context) {
	var req struct {
		Wallet    string `json:"wallet" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Message   string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR"})
		return
	}

	grant, err := h.downloads.VerifyAndIssueToken(c.Request.Context(), c.Param("id"), req.Wallet, req.Signature, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"download_token": grant.Token,
		"expires_at":     grant.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Download redeems a download token for the asset's storage location
func (h *Handlers) Download(c *gin.Context) {
	token := c.Query("token")
	wallet := c.Query("wallet")
	if token == "" || wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR"})
		return
	}

	asset, err := h.downloads.RedeemToken(c.Request.Context(), token, c.Param("id"), wallet)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"asset_id":    asset.ID,
		"title":       asset.Title,
		"storage_key": asset.StorageKey,
	})
}

// Me returns information about the authenticated user
func (h *Handlers) Me(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": claims.UserID,
		"wallet":  claims.Wallet,
	})
}

// Authorize reports that the bearer token on the request is valid
func (h *Handlers) Authorize(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"user_id":    claims.UserID,
		"wallet":     claims.Wallet,
	})
}
