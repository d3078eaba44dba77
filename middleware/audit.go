package middleware

import (
	"court_case_service/services"

	"github.com/labstack/echo/v4"
)

const (
	ContextKeyAuditContext = "audit_context"

	// HeaderClientID names the calling system
	HeaderClientID = "X-Client-Id"
	// HeaderUsername names the user acting through the calling system
	HeaderUsername = "X-Username"
)

// AuditContext is middleware that records who is calling for audit logging.
// The audit context is also attached to the request context so services can read it.
func AuditContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := services.AuditContext{
				ClientID:  req.Header.Get(HeaderClientID),
				Username:  req.Header.Get(HeaderUsername),
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
			}

			c.Set(ContextKeyAuditContext, ctx)
			c.SetRequest(req.WithContext(services.WithAuditContext(req.Context(), ctx)))
			return next(c)
		}
	}
}

// GetAuditContext retrieves the audit context from the request
func GetAuditContext(c echo.Context) services.AuditContext {
	if ctx, ok := c.Get(ContextKeyAuditContext).(services.AuditContext); ok {
		return ctx
	}
	return services.AuditContext{}
}

// ClientKey identifies the caller by client id, falling back to the remote IP
func ClientKey(c echo.Context) string {
	if id := GetAuditContext(c).ClientID; id != "" {
		return "client:" + id
	}
	if id := c.Request().Header.Get(HeaderClientID); id != "" {
		return "client:" + id
	}
	return "ip:" + c.RealIP()
}
