package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docquery-backend/internal/docquery/service"
	"github.com/yungbote/docquery-backend/internal/platform/apierr"
	"github.com/yungbote/docquery-backend/internal/platform/ctxutil"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

var (
	errBadBody        = errors.New("request body must be a JSON object with a \"query\" string")
	errCallerMismatch = errors.New("userId does not match the authenticated caller")
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type queryHandler struct {
	log *logger.Logger
	svc service.QueryService
}

// Query answers POST /v1/query. The user scope is the authenticated caller when present,
// otherwise the body's userId.
func (h *queryHandler) Query(c *gin.Context) {
	var req service.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(c, http.StatusRequestEntityTooLarge, apierr.CodeInvalidArgument, err)
			return
		}
		RespondAPIError(c, apierr.InvalidArgument(errBadBody))
		return
	}

	caller := ctxutil.CallerID(c.Request.Context())
	req.UserID = strings.TrimSpace(req.UserID)
	switch {
	case req.UserID == "":
		req.UserID = caller
	case caller != "" && req.UserID != caller:
		h.log.Warn("caller/user scope mismatch", "user_id", req.UserID, "caller_id", caller)
		RespondAPIError(c, apierr.InvalidArgument(errCallerMismatch))
		return
	}

	resp, err := h.svc.Query(c.Request.Context(), req)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, resp)
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleReadyz(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
