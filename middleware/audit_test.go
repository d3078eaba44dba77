package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"court_case_service/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAuditContextMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/case/C1/extended", nil)
	req.Header.Set(HeaderClientID, "crime-portal")
	req.Header.Set(HeaderUsername, "j.bloggs")
	req.Header.Set("User-Agent", "ingest/1.0")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var fromRequest services.AuditContext
	handler := AuditContext()(func(c echo.Context) error {
		fromRequest = services.AuditContextFrom(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	assert.NoError(t, handler(c))

	ctx := GetAuditContext(c)
	assert.Equal(t, "crime-portal", ctx.ClientID)
	assert.Equal(t, "j.bloggs", ctx.Username)
	assert.Equal(t, "ingest/1.0", ctx.UserAgent)
	assert.Equal(t, ctx, fromRequest)
	assert.Equal(t, "client:crime-portal", ClientKey(c))
}

func TestGetAuditContextWithoutMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, services.AuditContext{}, GetAuditContext(c))
	assert.Equal(t, "ip:10.1.2.3", ClientKey(c))
}
