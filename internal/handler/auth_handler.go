package handler

import (
	"net/http"
	"time"

	"strathub/internal/config"
	"strathub/internal/model"
	"strathub/internal/service"
	"strathub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Session cookie names. Access and refresh tokens ride in HttpOnly
// cookies so browser clients never touch them; API clients may instead
// send the access token as a Bearer header.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	cookieOAuthState   = "oauth_state"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	server      config.ServerConfig
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		server:      cfg.Server,
		accessTTL:   cfg.JWT.AccessTokenExpire,
		refreshTTL:  cfg.JWT.RefreshTokenExpire,
	}
}

// Register handles user registration. A successful registration is also
// a sign-in: the session cookies are set right away.
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	authResp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	h.setSessionCookies(c, authResp)
	util.SendCreated(c, authResp, "User registered successfully")
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	authResp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	h.setSessionCookies(c, authResp)
	util.SendSuccess(c, authResp)
}

// RefreshToken handles token refresh. The refresh token is read from its
// cookie; clients without cookies may send it in the body instead.
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	refreshToken, err := c.Cookie(CookieRefreshToken)
	if err != nil || refreshToken == "" {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			util.SendValidationError(c, "Missing refresh token")
			return
		}
		refreshToken = req.RefreshToken
	}

	authResp, err := h.authService.RefreshToken(c.Request.Context(), refreshToken)
	if err != nil {
		util.SendError(c, err)
		return
	}

	h.setSessionCookies(c, authResp)
	util.SendSuccess(c, authResp)
}

// Logout clears the session cookies. Tokens already issued expire on
// their own schedule.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearSessionCookies(c)
	util.SendSuccessWithMessage(c, nil, "Logged out successfully")
}

// GetMe returns current user info
// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		util.SendError(c, util.ErrUnauthorized("Authentication required"))
		return
	}
	util.SendSuccess(c, user.ToSafeUser())
}

// GoogleLogin starts the OAuth flow by redirecting to the consent screen.
// GET /api/v1/auth/google/login
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state := uuid.New().String()
	url, err := h.authService.GoogleLoginURL(state)
	if err != nil {
		util.SendError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieOAuthState, state, 300, "/", "", h.server.IsProduction(), true)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback completes the OAuth flow: the state cookie must match
// the state echoed back by Google, then the code is exchanged for a local
// session and the browser is sent back to the frontend.
// GET /api/v1/auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state, err := c.Cookie(cookieOAuthState)
	if err != nil || state == "" || state != c.Query("state") {
		util.SendError(c, util.ErrBadRequest("OAuth state mismatch"))
		return
	}
	c.SetCookie(cookieOAuthState, "", -1, "/", "", h.server.IsProduction(), true)

	code := c.Query("code")
	if code == "" {
		util.SendError(c, util.ErrBadRequest("Missing authorization code"))
		return
	}

	authResp, err := h.authService.GoogleCallback(c.Request.Context(), code)
	if err != nil {
		util.SendError(c, err)
		return
	}

	h.setSessionCookies(c, authResp)
	c.Redirect(http.StatusTemporaryRedirect, h.server.FrontendURL)
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, resp *model.AuthResponse) {
	secure := h.server.IsProduction()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieAccessToken, resp.AccessToken, int(h.accessTTL.Seconds()), "/", "", secure, true)
	c.SetCookie(CookieRefreshToken, resp.RefreshToken, int(h.refreshTTL.Seconds()), "/", "", secure, true)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	secure := h.server.IsProduction()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieAccessToken, "", -1, "/", "", secure, true)
	c.SetCookie(CookieRefreshToken, "", -1, "/", "", secure, true)
}
