package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bhuvesh-solnce/backend/internal/config"
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/auth"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	appErrors "github.com/bhuvesh-solnce/backend/pkg/errors"
)

// RequireAuth is a middleware that validates JWT bearer tokens and stores
// the resulting models.Caller in the context. Callers whose role is listed
// in cfg.AdminRoles receive the workflow override capability.
func RequireAuth(cfg config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	admins := make(map[string]struct{}, len(cfg.AdminRoles))
	for _, role := range cfg.AdminRoles {
		admins[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			abortUnauthorized(c, "No authorization token provided")
			return
		}

		// Extract token (format: "Bearer <token>")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != strings.TrimSpace(constants.BearerPrefix) {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		claims, err := auth.ValidateToken(secret, tokenString)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		caller := callerFromIdentity(claims.User)
		if _, ok := admins[strings.ToLower(caller.Role)]; ok && !caller.HasCapability(constants.CapabilityWorkflowOverride) {
			caller.Capabilities = append(caller.Capabilities, constants.CapabilityWorkflowOverride)
		}

		c.Set(constants.ContextKeyCaller, caller)
		c.Set(constants.ContextKeyToken, tokenString)

		c.Next()
	}
}

func callerFromIdentity(id auth.Identity) models.Caller {
	return models.Caller{
		ID:           id.ID,
		Name:         id.Name,
		Email:        id.Email,
		Role:         id.Role,
		Permissions:  append([]string(nil), id.Permissions...),
		Capabilities: append([]string(nil), id.Capabilities...),
	}
}

func abortUnauthorized(c *gin.Context, reason string) {
	err := appErrors.NewUnauthorizedError(reason)
	c.AbortWithStatusJSON(err.HTTPStatus(), gin.H{
		constants.ResponseError: "Unauthorized",
		constants.FieldMessage:  reason,
		constants.FieldCode:     err.Code(),
		constants.FieldData:     nil,
	})
}
