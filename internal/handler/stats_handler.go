package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/pkg/response"
	"github.com/snipvault/snipvault/internal/service"
)

type StatsHandler struct {
	stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) TokenStats(c *gin.Context) {
	stats, err := h.stats.TokenStats(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *StatsHandler) AccessLogs(c *gin.Context) {
	filter := model.AccessLogFilter{
		Source:     c.Query("source"),
		Country:    c.Query("country"),
		DeviceType: c.Query("device"),
		Browser:    c.Query("browser"),
		OS:         c.Query("os"),
		OrderDesc:  c.DefaultQuery("order", "desc") != "asc",
	}
	if value := c.Query("from"); value != "" {
		filter.From, _ = strconv.ParseInt(value, 10, 64)
	}
	if value := c.Query("to"); value != "" {
		filter.To, _ = strconv.ParseInt(value, 10, 64)
	}
	if value := c.Query("success"); value != "" {
		success := value == "true" || value == "1"
		filter.IsSuccess = &success
	}
	if value, err := strconv.Atoi(c.Query("limit")); err == nil && value > 0 {
		filter.Limit = uint(value)
	}
	if value, err := strconv.Atoi(c.Query("offset")); err == nil && value > 0 {
		filter.Offset = uint(value)
	}

	page, err := h.stats.AccessLogs(c.Request.Context(), getUserID(c), c.Param("id"), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, page)
}
