package service

import (
	"context"
	"time"

	"strathub/internal/model"
	"strathub/internal/repository"
	"strathub/internal/util"
)

// UserService handles account profile and brokerage credential logic
type UserService struct {
	userRepo *repository.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetProfile returns the safe view of a user.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.SafeUser, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, util.ErrNotFound("User not found")
	}
	return user.ToSafeUser(), nil
}

// IBKRStatus reports which gateway credential sets are on file. The
// credentials themselves are never returned.
func (s *UserService) IBKRStatus(ctx context.Context, userID string) (*model.IBKRStatus, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, util.ErrNotFound("User not found")
	}
	return &model.IBKRStatus{
		PaperReady: user.PaperReady(),
		LiveReady:  user.LiveReady(),
	}, nil
}

// UpdateIBKRPaper stores paper-trading gateway credentials.
func (s *UserService) UpdateIBKRPaper(ctx context.Context, userID string, req *model.UpdateIBKRPaperRequest) (*model.IBKRStatus, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, util.ErrNotFound("User not found")
	}

	user.IBKRPaperUsername = req.IBKRPaperUsername
	user.IBKRPaperPassword = req.IBKRPaperPassword
	user.IBKRPaperAccountID = req.IBKRPaperAccountID
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, util.ErrInternalServer("Failed to update credentials")
	}
	return &model.IBKRStatus{PaperReady: user.PaperReady(), LiveReady: user.LiveReady()}, nil
}

// UpdateIBKRLive stores live-trading gateway credentials.
func (s *UserService) UpdateIBKRLive(ctx context.Context, userID string, req *model.UpdateIBKRLiveRequest) (*model.IBKRStatus, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, util.ErrNotFound("User not found")
	}

	user.IBKRLiveUsername = req.IBKRLiveUsername
	user.IBKRLivePassword = req.IBKRLivePassword
	user.IBKRLiveAccountID = req.IBKRLiveAccountID
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, util.ErrInternalServer("Failed to update credentials")
	}
	return &model.IBKRStatus{PaperReady: user.PaperReady(), LiveReady: user.LiveReady()}, nil
}
