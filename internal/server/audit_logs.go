package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/vetbilling/internal/audit/domain"
)

type listAuditLogsQuery struct {
	Method  string `form:"method"`
	ActorID string `form:"actor_id"`
	StartAt string `form:"start_at"`
	EndAt   string `form:"end_at"`
	Limit   string `form:"limit"`
	Offset  string `form:"offset"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startAt, err := parseOptionalTime(query.StartAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	endAt, err := parseOptionalTime(query.EndAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}
	limit, err := parseOptionalInt(query.Limit)
	if err != nil {
		AbortWithError(c, auditdomain.ErrInvalidLimit)
		return
	}
	offset, err := parseOptionalInt(query.Offset)
	if err != nil {
		AbortWithError(c, auditdomain.ErrInvalidOffset)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Method:  strings.TrimSpace(query.Method),
		ActorID: strings.TrimSpace(query.ActorID),
		StartAt: startAt,
		EndAt:   endAt,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   resp.AuditLogs,
		"total":  resp.Total,
		"limit":  resp.Limit,
		"offset": resp.Offset,
	})
}
