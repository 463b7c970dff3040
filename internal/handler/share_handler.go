package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/pkg/errcode"
	"github.com/snipvault/snipvault/internal/pkg/response"
	"github.com/snipvault/snipvault/internal/service"
)

type ShareHandler struct {
	shares *service.ShareService
}

func NewShareHandler(shares *service.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

type createShareRequest struct {
	SnippetID      string `json:"snippet_id"`
	Description    string `json:"description"`
	Permission     string `json:"permission"`
	Password       string `json:"password"`
	ExpiresInHours int64  `json:"expires_in_hours"`
	MaxAccessCount int64  `json:"max_access_count"`
	AllowDownload  bool   `json:"allow_download"`
	AllowCopy      bool   `json:"allow_copy"`
}

type updateShareRequest struct {
	Description    *string `json:"description"`
	Permission     *string `json:"permission"`
	Password       *string `json:"password"`
	ClearPassword  bool    `json:"clear_password"`
	MaxAccessCount *int64  `json:"max_access_count"`
	ExtendHours    int64   `json:"extend_hours"`
	AllowDownload  *bool   `json:"allow_download"`
	AllowCopy      *bool   `json:"allow_copy"`
}

func (h *ShareHandler) Create(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, errcode.ErrInvalid, "invalid request")
		return
	}
	share, err := h.shares.Create(c.Request.Context(), getUserID(c), service.CreateShareInput{
		SnippetID:      req.SnippetID,
		Description:    req.Description,
		Permission:     model.SharePermission(req.Permission),
		Password:       req.Password,
		ExpiresInHours: req.ExpiresInHours,
		MaxAccessCount: req.MaxAccessCount,
		AllowDownload:  req.AllowDownload,
		AllowCopy:      req.AllowCopy,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, share)
}

func (h *ShareHandler) Get(c *gin.Context) {
	share, err := h.shares.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, share)
}

func (h *ShareHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	items, err := h.shares.List(c.Request.Context(), getUserID(c), uint(limit), uint(offset))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ShareHandler) Update(c *gin.Context) {
	var req updateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, errcode.ErrInvalid, "invalid request")
		return
	}
	input := service.UpdateShareInput{
		Description:    req.Description,
		Password:       req.Password,
		ClearPassword:  req.ClearPassword,
		MaxAccessCount: req.MaxAccessCount,
		ExtendHours:    req.ExtendHours,
		AllowDownload:  req.AllowDownload,
		AllowCopy:      req.AllowCopy,
	}
	if req.Permission != nil {
		permission := model.SharePermission(*req.Permission)
		input.Permission = &permission
	}
	share, err := h.shares.Update(c.Request.Context(), getUserID(c), c.Param("id"), input)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, share)
}

func (h *ShareHandler) Revoke(c *gin.Context) {
	if err := h.shares.Revoke(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ShareHandler) Delete(c *gin.Context) {
	if err := h.shares.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
