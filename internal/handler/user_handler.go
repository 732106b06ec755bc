package handler

import (
	"strathub/internal/model"
	"strathub/internal/service"
	"strathub/internal/util"

	"github.com/gin-gonic/gin"
)

// UserHandler handles profile and brokerage credential endpoints
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile returns the caller's profile
// GET /api/v1/users/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.userService.GetProfile(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, profile)
}

// GetIBKRStatus reports which brokerage credential sets are configured.
// Credential values themselves are never returned.
// GET /api/v1/users/ibkr_status
func (h *UserHandler) GetIBKRStatus(c *gin.Context) {
	status, err := h.userService.IBKRStatus(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, status)
}

// UpdateIBKRPaper stores the paper trading credential triple
// PATCH /api/v1/users/ibkr_paper
func (h *UserHandler) UpdateIBKRPaper(c *gin.Context) {
	var req model.UpdateIBKRPaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	status, err := h.userService.UpdateIBKRPaper(c.Request.Context(), CurrentUserID(c), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccessWithMessage(c, status, "Paper trading credentials updated")
}

// UpdateIBKRLive stores the live trading credential triple
// PATCH /api/v1/users/ibkr_live
func (h *UserHandler) UpdateIBKRLive(c *gin.Context) {
	var req model.UpdateIBKRLiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	status, err := h.userService.UpdateIBKRLive(c.Request.Context(), CurrentUserID(c), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccessWithMessage(c, status, "Live trading credentials updated")
}
