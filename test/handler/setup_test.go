package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/snipvault/snipvault/internal/config"
	"github.com/snipvault/snipvault/internal/handler"
	"github.com/snipvault/snipvault/internal/middleware"
	"github.com/snipvault/snipvault/internal/pkg/jwt"
	"github.com/snipvault/snipvault/internal/repo"
	"github.com/snipvault/snipvault/internal/service"
	"github.com/snipvault/snipvault/internal/uaclass"
	"github.com/snipvault/snipvault/test/testutil"
)

var testJWTSecret = []byte("test-secret")

func setupRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	tokenRepo := repo.NewShareTokenRepo(db)
	logRepo := repo.NewAccessLogRepo(db)

	limits := config.ShareConfig{
		StorageTimeoutMs: 3000,
		MaxExpireHours:   24 * 365,
		MaxAccessLimit:   1000000,
		MinPasswordLen:   6,
	}
	classifier := uaclass.WrapLRU(uaclass.NewHeuristicClassifier(nil), 128, time.Minute)

	deps := handler.RouterDeps{
		Shares:    handler.NewShareHandler(service.NewShareService(tokenRepo, logRepo, limits)),
		Access:    handler.NewAccessHandler(service.NewAccessService(tokenRepo, logRepo, classifier, limits.StorageTimeout(), time.UTC)),
		Stats:     handler.NewStatsHandler(service.NewStatsService(tokenRepo, logRepo, time.UTC)),
		Bulk:      handler.NewBulkHandler(service.NewBulkService(tokenRepo, logRepo)),
		JWTSecret: testJWTSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine, cleanup
}

func authHeader(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, "", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}
