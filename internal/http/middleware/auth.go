package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lumenlearn/curricula-backend/internal/http/response"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

// Principal is the authenticated caller as reported by the external identity
// provider.
type Principal struct {
	UserID string
	Email  string
}

// TokenVerifier is the boundary to the external auth system. The service does
// not verify tokens itself.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// AllowAll accepts every request without a principal. Used when the deployment
// terminates auth upstream (gateway) or in local development.
type AllowAll struct{}

func (AllowAll) Verify(context.Context, string) (*Principal, error) {
	return &Principal{}, nil
}

type AuthMiddleware struct {
	log      *logger.Logger
	verifier TokenVerifier
}

func NewAuthMiddleware(log *logger.Logger, verifier TokenVerifier) *AuthMiddleware {
	if verifier == nil {
		verifier = AllowAll{}
	}
	return &AuthMiddleware{
		log:      log.With("middleware", "AuthMiddleware"),
		verifier: verifier,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		principal, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			c.Abort()
			return
		}
		c.Set("principal", principal)
		c.Next()
	}
}
