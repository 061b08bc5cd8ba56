package handler

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"credit_ledger/internal/oauth"
	"credit_ledger/internal/response"

	"github.com/gin-gonic/gin"
)

// OAuthHandler adapts the Google sign-in flow onto HTTP
type OAuthHandler struct {
	provider *oauth.Provider

	// Browser destinations after the callback.
	SuccessRedirect string
	FailureRedirect string
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(provider *oauth.Provider) *OAuthHandler {
	return &OAuthHandler{
		provider:        provider,
		SuccessRedirect: "/dashboard.html",
		FailureRedirect: "/login.html",
	}
}

// GoogleURL answers GET /api/auth/google/url with the consent URL
func (h *OAuthHandler) GoogleURL(c *gin.Context) {
	authURL, err := h.provider.AuthorizationURL()
	if err != nil {
		log.Printf("error building google authorization url: %v", err)
		response.Internal(c)
		return
	}
	response.OK(c, "", gin.H{"url": authURL})
}

// GoogleCallback finishes the flow and sends the browser back to the app.
// Failures always redirect with a generic error indicator; provider detail
// never reaches the client.
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")

	sess, err := h.provider.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		if !errors.Is(err, oauth.ErrProviderFailure) && !errors.Is(err, oauth.ErrInvalidState) {
			log.Printf("unexpected error in google callback: %v", err)
		}
		c.Redirect(http.StatusFound, h.FailureRedirect+"?error=oauth")
		return
	}

	c.Redirect(http.StatusFound, h.SuccessRedirect+"?token="+url.QueryEscape(sess.Token))
}

// RegisterOAuthRoutes registers the Google sign-in routes
func (h *OAuthHandler) RegisterOAuthRoutes(r *gin.Engine) {
	r.GET("/api/auth/google/url", h.GoogleURL)
	r.GET("/auth/google/callback", h.GoogleCallback)
}
