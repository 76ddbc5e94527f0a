package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// BuyerIDKey is the gin context key the middleware stores the authenticated buyer
// id under.
const BuyerIDKey = "buyer_id"

// Middleware validates a Bearer token signed with the shared HMAC secret and puts the
// buyer id (the token subject) on the request context. Unauthenticated requests are
// rejected before any handler runs.
func Middleware(secret string) gin.HandlerFunc {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_bearer_token"})
			return
		}

		token, err := jwt.Parse(tokenString, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token_subject"})
			return
		}

		c.Set(BuyerIDKey, sub)
		c.Next()
	}
}

// BuyerID returns the authenticated buyer id set by Middleware.
func BuyerID(c *gin.Context) (string, bool) {
	v, ok := c.Get(BuyerIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
