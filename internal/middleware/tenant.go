package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
	"github.com/maktab-hq/maktab-api/pkg/response"
)

// ContextScopeKey is the gin context key storing the derived tenant scope.
const ContextScopeKey = "tenantScope"

// Tenant derives the campus scope from the authenticated claims and stores
// it on the request context. Owners see every campus by default and may pin
// the request to one campus with the campus_id query parameter or the
// X-Campus-ID header; everyone else is locked to their own campus.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		scope := claims.Scope()
		if scope.AllCampuses {
			requested := c.Query("campus_id")
			if requested == "" {
				requested = c.GetHeader("X-Campus-ID")
			}
			scope = scope.Narrow(requested)
		}

		c.Set(ContextScopeKey, scope)
		c.Next()
	}
}

// Scope returns the tenant scope stored by the Tenant middleware.
func Scope(c *gin.Context) models.TenantScope {
	value, exists := c.Get(ContextScopeKey)
	if !exists {
		return models.TenantScope{}
	}
	scope, ok := value.(models.TenantScope)
	if !ok {
		return models.TenantScope{}
	}
	return scope
}
