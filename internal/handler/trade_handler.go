package handler

import (
	"strathub/internal/model"
	"strathub/internal/service"
	"strathub/internal/util"

	"github.com/gin-gonic/gin"
)

// TradeHandler handles trading run endpoints
type TradeHandler struct {
	tradeService *service.TradeService
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(tradeService *service.TradeService) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

// Run queues a paper or live trading run for one of the caller's bots
// POST /api/v1/trades/run
func (h *TradeHandler) Run(c *gin.Context) {
	var req model.RunTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	bot, err := h.tradeService.Run(c.Request.Context(), CurrentUserID(c), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccessWithMessage(c, bot, "Trading run queued")
}

// Stop halts one of the caller's running bots
// POST /api/v1/trades/stop/:botId
func (h *TradeHandler) Stop(c *gin.Context) {
	bot, err := h.tradeService.Stop(c.Request.Context(), CurrentUserID(c), c.Param("botId"))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccessWithMessage(c, bot, "Bot stopped")
}

// List returns the caller's trade events across all bots
// GET /api/v1/trades/
func (h *TradeHandler) List(c *gin.Context) {
	trades, err := h.tradeService.ListByOwner(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, trades)
}

// ListByBot returns trade events for one of the caller's bots
// GET /api/v1/trades/bot/:botId
func (h *TradeHandler) ListByBot(c *gin.Context) {
	trades, err := h.tradeService.ListByBot(c.Request.Context(), CurrentUserID(c), c.Param("botId"))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, trades)
}
