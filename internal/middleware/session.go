package middleware

import (
	"net/http"

	"github.com/aasprep/practest-backend/internal/response"
	"github.com/aasprep/practest-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// CheckActiveLogin validates the JWT's JTI against the active login in Redis.
// A mismatch means the token was superseded by a newer login (or the user
// logged out) and the request is rejected.
func CheckActiveLogin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateLogin(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrLoginSuperseded)
			return
		}

		c.Next()
	}
}
