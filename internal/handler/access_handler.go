package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snipvault/snipvault/internal/pkg/errcode"
	"github.com/snipvault/snipvault/internal/pkg/response"
	"github.com/snipvault/snipvault/internal/service"
)

type AccessHandler struct {
	access *service.AccessService
}

func NewAccessHandler(access *service.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

type accessRequest struct {
	Password  string `json:"password"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

type durationRequest struct {
	DurationMs int64 `json:"duration_ms"`
}

// Attempt is the public enforcement endpoint; every call is logged by the
// service whatever the outcome.
func (h *AccessHandler) Attempt(c *gin.Context) {
	var req accessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
			return
		}
	}
	grant, err := h.access.Attempt(c.Request.Context(), c.Param("token"), req.Password, service.AccessContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
		Source:    req.Source,
		SessionID: req.SessionID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	if grant.Outcome.Granted() {
		response.Success(c, grant)
		return
	}
	status, code, message := refusalStatus(grant.Outcome)
	response.ErrorWithDetails(c, status, code, message, gin.H{"outcome": grant.Outcome, "log_id": grant.LogID})
}

func (h *AccessHandler) RecordDuration(c *gin.Context) {
	var req durationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.access.RecordDuration(c.Request.Context(), c.Param("log_id"), req.DurationMs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

// refusalStatus maps a denial to its HTTP shape. NotFound and
// PasswordIncorrect stay distinguishable by code but share message text, so
// the UI cannot leak token existence.
func refusalStatus(outcome service.AccessOutcome) (int, int, string) {
	switch outcome {
	case service.OutcomeNotFound:
		return http.StatusNotFound, errcode.ErrNotFound, "share unavailable"
	case service.OutcomeRevoked:
		return http.StatusGone, errcode.ErrShareRevoked, "share revoked"
	case service.OutcomeExpired:
		return http.StatusGone, errcode.ErrShareExpired, "share expired"
	case service.OutcomePasswordRequired:
		return http.StatusUnauthorized, errcode.ErrSharePasswordRequired, "password required"
	case service.OutcomePasswordIncorrect:
		return http.StatusUnauthorized, errcode.ErrSharePasswordIncorrect, "share unavailable"
	case service.OutcomeLimitReached:
		return http.StatusTooManyRequests, errcode.ErrShareLimitReached, "access limit reached"
	}
	return http.StatusInternalServerError, errcode.ErrInternal, "internal error"
}
