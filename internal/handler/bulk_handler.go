package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snipvault/snipvault/internal/pkg/errcode"
	"github.com/snipvault/snipvault/internal/pkg/response"
	"github.com/snipvault/snipvault/internal/service"
)

type BulkHandler struct {
	bulk *service.BulkService
}

func NewBulkHandler(bulk *service.BulkService) *BulkHandler {
	return &BulkHandler{bulk: bulk}
}

type bulkRequest struct {
	TokenIDs  []string `json:"token_ids"`
	Operation string   `json:"operation"`
	Param     int64    `json:"param"`
}

func (h *BulkHandler) Apply(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.bulk.Apply(c.Request.Context(), getUserID(c), req.TokenIDs,
		service.BulkOperation(req.Operation), req.Param)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
