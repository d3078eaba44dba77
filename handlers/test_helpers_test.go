package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"court_case_service/db"
	"court_case_service/middleware"
	"court_case_service/models"
	"court_case_service/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests while allowing shared cache for async tasks
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	assert.NoError(t, err)

	sqlDB, err := testDB.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = testDB.AutoMigrate(
		&models.Court{},
		&models.CourtCase{},
		&models.Hearing{},
		&models.Offence{},
		&models.Offender{},
		&models.Defendant{},
		&models.DefendantOffence{},
		&models.AuditLog{},
	)
	assert.NoError(t, err)
	assert.NoError(t, testDB.Create(&models.Court{CourtCode: "B10JQ", Name: "North Tyneside"}).Error)

	// Set global DB
	db.DB = testDB

	return testDB
}

// fixedMatches reports the same number of possible matches for every defendant
type fixedMatches int

func (m fixedMatches) MatchCount(_ context.Context, _, _ string) (int, error) {
	return int(m), nil
}

type testServer struct {
	e       *echo.Echo
	db      *gorm.DB
	service *services.CourtCaseService
	archive *services.PayloadArchive
}

func setupServer(t *testing.T, matches services.MatchCounter) *testServer {
	testDB := setupTestDB(t)
	service := services.NewCourtCaseService(services.CourtCaseServiceConfig{
		Store:   services.NewGormStore(testDB),
		Auditor: services.NewGormAuditor(testDB, nil),
	})
	archive := services.NewPayloadArchive(services.NewLocalStorage(t.TempDir()), true, nil)

	e := echo.New()
	e.Use(middleware.AuditContext())
	h := NewCourtCaseHandler(service, matches, archive, nil)
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	h.Register(e.Group(""), pass, pass)
	e.GET("/audit-logs", GetAuditLogsHandler)
	e.GET("/case/:caseId/history", GetCaseHistoryHandler)
	e.GET("/health", HealthHandler)

	return &testServer{e: e, db: testDB, service: service, archive: archive}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) mustPut(t *testing.T, path, body string) {
	t.Helper()
	rec := s.do(http.MethodPut, path, body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
