package handler

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"strathub/internal/config"
	"strathub/internal/database"
	"strathub/internal/middleware"
	"strathub/internal/repository"
	"strathub/internal/service"
	"strathub/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(filepath.Join(t.TempDir(), "handler_test.db"))
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenExpire:  15 * time.Minute,
			RefreshTokenExpire: 24 * time.Hour,
		},
	}

	userRepo := repository.NewUserRepository(db)
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)
	authService := service.NewAuthService(userRepo, jwtManager, config.GoogleConfig{})
	authHandler := NewAuthHandler(authService, cfg)

	router := gin.New()
	router.POST("/auth/register", authHandler.Register)
	router.GET("/auth/me", middleware.AuthMiddleware(authService), authHandler.GetMe)
	return router
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestRegister_SetsSessionCookies(t *testing.T) {
	router := setupAuthRouter(t)

	body := `{"email":"alice@example.com","username":"alice","password":"correct-horse-1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	access := sessionCookie(t, rec, CookieAccessToken)
	require.NotNil(t, access, "register must set the access_token session cookie")
	assert.True(t, access.HttpOnly)
	refresh := sessionCookie(t, rec, CookieRefreshToken)
	require.NotNil(t, refresh, "register must set the refresh_token session cookie")
	assert.True(t, refresh.HttpOnly)

	assert.NotEmpty(t, gjson.Get(rec.Body.String(), "data.access_token").String())
	assert.Equal(t, "alice@example.com", gjson.Get(rec.Body.String(), "data.user.email").String())
}

func TestRegister_CookieAuthenticatesMe(t *testing.T) {
	router := setupAuthRouter(t)

	body := `{"email":"alice@example.com","username":"alice","password":"correct-horse-1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	access := sessionCookie(t, rec, CookieAccessToken)
	require.NotNil(t, access)

	// No Authorization header: the fresh cookie alone must carry the session.
	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(access)
	meRec := httptest.NewRecorder()
	router.ServeHTTP(meRec, meReq)

	require.Equal(t, http.StatusOK, meRec.Code)
	assert.Equal(t, "alice@example.com", gjson.Get(meRec.Body.String(), "data.email").String())
}
