package model

import "time"

// User represents a registered account. Brokerage credentials are stored
// per trade mode and never serialized in API responses.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Email        string `gorm:"uniqueIndex;size:255" json:"email"`
	Username     string `gorm:"size:255" json:"username"`
	PasswordHash string `gorm:"size:255" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	IBKRPaperUsername  string `gorm:"size:255" json:"-"`
	IBKRPaperPassword  string `gorm:"size:255" json:"-"`
	IBKRPaperAccountID string `gorm:"size:255" json:"-"`

	IBKRLiveUsername  string `gorm:"size:255" json:"-"`
	IBKRLivePassword  string `gorm:"size:255" json:"-"`
	IBKRLiveAccountID string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Bots []Bot `gorm:"foreignKey:OwnerID" json:"-"`
}

// SafeUser is the user shape returned by the API. No credential fields.
type SafeUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ToSafeUser converts a User to its API representation.
func (u *User) ToSafeUser() *SafeUser {
	return &SafeUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// PaperReady reports whether the paper credential triple is complete.
func (u *User) PaperReady() bool {
	return u.IBKRPaperUsername != "" && u.IBKRPaperPassword != "" && u.IBKRPaperAccountID != ""
}

// LiveReady reports whether the live credential triple is complete.
func (u *User) LiveReady() bool {
	return u.IBKRLiveUsername != "" && u.IBKRLivePassword != "" && u.IBKRLiveAccountID != ""
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=100"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	User         *SafeUser `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"` // seconds
}

// UpdateIBKRPaperRequest updates the paper trading credential triple.
type UpdateIBKRPaperRequest struct {
	IBKRPaperUsername  string `json:"ibkr_paper_username" binding:"required"`
	IBKRPaperPassword  string `json:"ibkr_paper_password" binding:"required"`
	IBKRPaperAccountID string `json:"ibkr_paper_account_id" binding:"required"`
}

// UpdateIBKRLiveRequest updates the live trading credential triple.
type UpdateIBKRLiveRequest struct {
	IBKRLiveUsername  string `json:"ibkr_live_username" binding:"required"`
	IBKRLivePassword  string `json:"ibkr_live_password" binding:"required"`
	IBKRLiveAccountID string `json:"ibkr_live_account_id" binding:"required"`
}

// IBKRStatus reports whether each credential triple is configured.
type IBKRStatus struct {
	PaperReady bool `json:"paper_ready"`
	LiveReady  bool `json:"live_ready"`
}
