package handler

import (
	"strathub/internal/model"
	"strathub/internal/service"
	"strathub/internal/util"

	"github.com/gin-gonic/gin"
)

// BacktestHandler handles backtest endpoints
type BacktestHandler struct {
	backtestService *service.BacktestService
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(backtestService *service.BacktestService) *BacktestHandler {
	return &BacktestHandler{backtestService: backtestService}
}

// Run queues a backtest for one of the caller's bots
// POST /api/v1/backtests/run
func (h *BacktestHandler) Run(c *gin.Context) {
	var req model.RunBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	bot, err := h.backtestService.Run(c.Request.Context(), CurrentUserID(c), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccessWithMessage(c, bot, "Backtest queued")
}

// LatestResult returns the most recent backtest for a bot. Data is null
// until the first run completes.
// GET /api/v1/backtests/:botId
func (h *BacktestHandler) LatestResult(c *gin.Context) {
	backtest, err := h.backtestService.LatestResult(c.Request.Context(), CurrentUserID(c), c.Param("botId"))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, backtest)
}
