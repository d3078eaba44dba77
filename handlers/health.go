package handlers

import (
	"context"
	"net/http"
	"time"

	"court_case_service/db"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports whether the database answers
func HealthHandler(c echo.Context) error {
	if db.DB == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "DOWN", "database": "not initialized"})
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "DOWN", "database": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "DOWN", "database": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "UP"})
}
