package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/snipvault/snipvault/internal/pkg/errcode"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
	"github.com/snipvault/snipvault/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get("user_id")
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if ve, ok := appErr.AsValidation(err); ok {
		response.ErrorWithDetails(c, http.StatusBadRequest, errcode.ErrInvalid, "validation failed", ve.Violations)
		return
	}
	switch {
	case err == appErr.ErrUnauthorized:
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized")
	case err == appErr.ErrForbidden:
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case appErr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case err == appErr.ErrInvalid:
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
	case appErr.IsConflict(err):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, "conflict")
	case appErr.IsTimeout(err):
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrStorageTimeout, "temporarily unavailable, retry")
	default:
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("user_id", getUserID(c)),
			zap.Error(err))
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
