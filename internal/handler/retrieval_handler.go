package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

type RetrievalHandler struct {
	retrieval *service.RetrievalService
}

func NewRetrievalHandler(retrieval *service.RetrievalService) *RetrievalHandler {
	return &RetrievalHandler{retrieval: retrieval}
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

func (h *RetrievalHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	mode, err := service.ParseMode(req.Mode)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "mode must be direct, tool-augmented or autonomous")
		return
	}
	result, err := h.retrieval.Retrieve(c.Request.Context(), getUserID(c), req.Query, mode)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *RetrievalHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.Error(c, errcode.ErrInvalid, "q is required")
		return
	}
	topK, _ := strconv.Atoi(c.Query("top_k"))
	result, err := h.retrieval.Search(c.Request.Context(), getUserID(c), query, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
