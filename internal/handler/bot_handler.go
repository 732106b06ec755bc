package handler

import (
	"strathub/internal/model"
	"strathub/internal/service"
	"strathub/internal/util"

	"github.com/gin-gonic/gin"
)

// BotHandler handles bot CRUD endpoints
type BotHandler struct {
	botService *service.BotService
}

// NewBotHandler creates a new bot handler
func NewBotHandler(botService *service.BotService) *BotHandler {
	return &BotHandler{botService: botService}
}

// Create registers a new bot for the caller
// POST /api/v1/bots/create
func (h *BotHandler) Create(c *gin.Context) {
	var req model.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	bot, err := h.botService.Create(c.Request.Context(), CurrentUserID(c), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendCreated(c, bot, "Bot created successfully")
}

// List returns the caller's bots
// GET /api/v1/bots/my_bots
func (h *BotHandler) List(c *gin.Context) {
	bots, err := h.botService.List(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, bots)
}

// ListPublic returns running bots across all users
// GET /api/v1/bots/all_bots
func (h *BotHandler) ListPublic(c *gin.Context) {
	bots, err := h.botService.ListPublic(c.Request.Context())
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, bots)
}

// Get returns one of the caller's bots
// GET /api/v1/bots/:id
func (h *BotHandler) Get(c *gin.Context) {
	bot, err := h.botService.Get(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, bot)
}

// Update edits a bot's description or parameters
// PATCH /api/v1/bots/:id
func (h *BotHandler) Update(c *gin.Context) {
	var req model.UpdateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	bot, err := h.botService.Update(c.Request.Context(), CurrentUserID(c), c.Param("id"), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, bot)
}

// Toggle flips a running bot between LIVE and PAUSED
// PATCH /api/v1/bots/:id/toggle_status
func (h *BotHandler) Toggle(c *gin.Context) {
	bot, err := h.botService.Toggle(c.Request.Context(), CurrentUserID(c), c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, bot)
}

// Delete removes a bot and its backtests and trades
// DELETE /api/v1/bots/:id
func (h *BotHandler) Delete(c *gin.Context) {
	if err := h.botService.Delete(c.Request.Context(), CurrentUserID(c), c.Param("id")); err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccessWithMessage(c, nil, "Bot deleted successfully")
}
