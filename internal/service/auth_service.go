package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"strathub/internal/config"
	"strathub/internal/model"
	"strathub/internal/repository"
	"strathub/internal/util"
	"strathub/pkg/crypto"
	"strathub/pkg/jwt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AuthService handles authentication logic
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *jwt.Manager
	oauth      *oauth2.Config
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, jwtManager *jwt.Manager, googleCfg config.GoogleConfig) *AuthService {
	var oauth *oauth2.Config
	if googleCfg.Enabled() {
		oauth = &oauth2.Config{
			ClientID:     googleCfg.ClientID,
			ClientSecret: googleCfg.ClientSecret,
			RedirectURL:  googleCfg.RedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		oauth:      oauth,
	}
}

// Register creates a new user and signs them in, returning the same
// token pair Login would.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	if !crypto.ValidatePasswordStrength(req.Password) {
		return nil, util.ErrValidation("Password must be 8-100 characters")
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to hash password")
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, util.ErrConflict("Email already registered")
		}
		return nil, util.ErrInternalServer("Failed to create user")
	}

	return s.issueTokens(user)
}

// Login authenticates a user by email and password and returns tokens
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, util.NewAppError(401, util.ErrCodeInvalidCredentials, "Invalid email or password")
	}

	if !user.IsActive {
		return nil, util.ErrForbidden("User account is inactive")
	}

	if !crypto.CheckPassword(req.Password, user.PasswordHash) {
		return nil, util.NewAppError(401, util.ErrCodeInvalidCredentials, "Invalid email or password")
	}

	return s.issueTokens(user)
}

// RefreshToken exchanges a valid refresh token for a fresh token pair.
// Access tokens are rejected here even when otherwise valid.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	claims, err := s.jwtManager.ValidateType(refreshToken, jwt.TypeRefresh)
	if err != nil {
		return nil, util.NewAppError(401, util.ErrCodeTokenInvalid, "Invalid refresh token")
	}

	user, err := s.userRepo.GetBySubject(ctx, claims.Subject)
	if err != nil {
		return nil, util.ErrNotFound("User not found")
	}
	if !user.IsActive {
		return nil, util.ErrForbidden("User account is inactive")
	}

	return s.issueTokens(user)
}

// ValidateToken validates an access token and resolves its subject to a
// user. The subject may carry either the user's email or id.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.jwtManager.ValidateType(token, jwt.TypeAccess)
	if err != nil {
		return nil, util.NewAppError(401, util.ErrCodeTokenInvalid, "Invalid token")
	}

	user, err := s.userRepo.GetBySubject(ctx, claims.Subject)
	if err != nil {
		return nil, util.NewAppError(401, util.ErrCodeTokenInvalid, "Invalid token")
	}
	if !user.IsActive {
		return nil, util.ErrForbidden("User account is inactive")
	}
	return user, nil
}

// GoogleEnabled reports whether Google OAuth is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.oauth != nil
}

// GoogleLoginURL builds the consent-screen redirect for a state value.
func (s *AuthService) GoogleLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", util.ErrBadRequest("Google login is not configured")
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// GoogleCallback exchanges the authorization code, fetches the Google
// profile, and upserts a local account for it. Accounts created this way
// get a random password hash that can never be logged in with directly.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*model.AuthResponse, error) {
	if s.oauth == nil {
		return nil, util.ErrBadRequest("Google login is not configured")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, util.NewAppError(401, util.ErrCodeUnauthorized, "OAuth code exchange failed")
	}

	email, name, err := s.fetchGoogleProfile(ctx, token)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to fetch Google profile")
	}
	if email == "" {
		return nil, util.ErrBadRequest("Google account has no email")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.createOAuthUser(ctx, email, name)
	}
	if err != nil {
		return nil, util.ErrInternalServer("Failed to resolve user account")
	}
	if !user.IsActive {
		return nil, util.ErrForbidden("User account is inactive")
	}

	return s.issueTokens(user)
}

func (s *AuthService) fetchGoogleProfile(ctx context.Context, token *oauth2.Token) (email, name string, err error) {
	resp, err := s.oauth.Client(ctx, token).Get(googleUserinfoURL)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode != 200 {
		return "", "", fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	profile := gjson.ParseBytes(body)
	return profile.Get("email").String(), profile.Get("name").String(), nil
}

func (s *AuthService) createOAuthUser(ctx context.Context, email, name string) (*model.User, error) {
	// Random throwaway password: OAuth accounts authenticate via Google.
	passwordHash, err := crypto.HashPassword(uuid.New().String())
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = email
	}
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     name,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(user *model.User) (*model.AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.Email)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to generate access token")
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.Email)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to generate refresh token")
	}

	return &model.AuthResponse{
		User:         user.ToSafeUser(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.AccessTTL().Seconds()),
	}, nil
}
