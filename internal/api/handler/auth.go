package handler

import (
	"net/http"
	"strings"

	"friendchat/backend/internal/auth"
	"friendchat/backend/internal/errs"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// AuthMiddleware перевіряє JWT і зберігає claims у контексті. allowQuery also accepts
// the token as ?token=, which browsers need for the websocket upgrade.
func (h *Handler) AuthMiddleware(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" && allowQuery {
			tokenString = c.Query("token")
		}

		claims, err := h.Tokens.Validate(tokenString)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func currentClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// currentUserID returns the authenticated caller. Routes behind AuthMiddleware always
// have one.
func currentUserID(c *gin.Context) string {
	if claims := currentClaims(c); claims != nil {
		return claims.UserID()
	}
	return ""
}

// requireSelf rejects requests for another user's data.
func (h *Handler) requireSelf(c *gin.Context, userID string) bool {
	if userID == "" {
		h.fail(c, errs.ErrMissingIdentifier)
		return false
	}
	if userID != currentUserID(c) {
		h.fail(c, errs.ErrForeignResource)
		return false
	}
	return true
}

// OriginMiddleware allows cross-origin calls from the configured frontend only. An
// empty AllowedOrigin accepts any origin.
func (h *Handler) OriginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if !h.originAllowed(origin) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": h.Localizer.GetString(language(c), "origin_not_allowed"),
					"code":  "origin_not_allowed",
				})
				return
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept-Language")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) originAllowed(origin string) bool {
	if h.AllowedOrigin == "" || origin == "" {
		return true
	}
	return strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(h.AllowedOrigin, "/"))
}
