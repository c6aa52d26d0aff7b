package controller

import (
	"log/slog"
	"net/http"

	"ctchen222/Four-In-A-Row/internal/api/models"
	"ctchen222/Four-In-A-Row/internal/api/response"
	"ctchen222/Four-In-A-Row/internal/api/service"

	"github.com/gin-gonic/gin"
)

// HistoryController serves finished games and win/loss statistics.
type HistoryController struct {
	historyService service.HistoryService
}

// NewHistoryController creates a new HistoryController.
func NewHistoryController(historyService service.HistoryService) *HistoryController {
	return &HistoryController{historyService: historyService}
}

// History lists the most recent games of the player in the path.
func (hc *HistoryController) History(c *gin.Context) {
	var query models.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	playerID := c.Param("id")
	items, err := hc.historyService.History(c.Request.Context(), playerID, query.Limit)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to load history", "player.id", playerID, "error", err)
		response.ErrorResponse(c, http.StatusInternalServerError, "failed to load history")
		return
	}

	response.SuccessResponseList(c, items)
}

// Stats returns the played/won/lost/drawn counters of the player in the path.
func (hc *HistoryController) Stats(c *gin.Context) {
	playerID := c.Param("id")
	stats, err := hc.historyService.Stats(c.Request.Context(), playerID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to load stats", "player.id", playerID, "error", err)
		response.ErrorResponse(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	response.SuccessResponse(c, stats)
}
