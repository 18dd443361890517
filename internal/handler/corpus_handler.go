package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type CorpusHandler struct {
	corpus *service.CorpusService
}

func NewCorpusHandler(corpus *service.CorpusService) *CorpusHandler {
	return &CorpusHandler{corpus: corpus}
}

func (h *CorpusHandler) CreateEmail(c *gin.Context) {
	var req service.CreateEmailInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Body) == "" {
		response.Error(c, errcode.ErrInvalid, "subject or body is required")
		return
	}
	email, err := h.corpus.CreateEmail(c.Request.Context(), getUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, email)
}

func (h *CorpusHandler) CreateSchedule(c *gin.Context) {
	var req service.CreateScheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Summary) == "" {
		response.Error(c, errcode.ErrInvalid, "summary is required")
		return
	}
	schedule, err := h.corpus.CreateSchedule(c.Request.Context(), getUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, schedule)
}

func (h *CorpusHandler) CreateAttachment(c *gin.Context) {
	var req service.CreateAttachmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		response.Error(c, errcode.ErrInvalid, "filename is required")
		return
	}
	attachment, err := h.corpus.CreateAttachment(c.Request.Context(), getUserID(c), &req, nil)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, attachment)
}

func (h *CorpusHandler) Get(c *gin.Context) {
	typ, ok := model.ParseRecordType(c.Param("type"))
	if !ok {
		response.Error(c, errcode.ErrInvalid, "type must be email, schedule, file or attachment")
		return
	}
	record, err := h.corpus.Get(c.Request.Context(), getUserID(c), typ, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, record)
}
