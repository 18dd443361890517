package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/errcode"
	"github.com/xxxsen/recall/internal/pkg/response"
	"github.com/xxxsen/recall/internal/service"
)

const maxUploadBytes = 32 << 20

type FileHandler struct {
	corpus *service.CorpusService
}

func NewFileHandler(corpus *service.CorpusService) *FileHandler {
	return &FileHandler{corpus: corpus}
}

// Upload ingests one file: the raw bytes go to the blob store, the optional
// "content" form field carries the extracted text used for search.
func (h *FileHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.Error(c, errcode.ErrInvalid, "file too large")
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		handleError(c, err)
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		handleError(c, err)
		return
	}
	if len(data) > maxUploadBytes {
		response.Error(c, errcode.ErrInvalid, "file too large")
		return
	}
	in := &service.CreateFileInput{
		Name:     fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  c.PostForm("content"),
	}
	file, err := h.corpus.CreateFile(c.Request.Context(), getUserID(c), in, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, file)
}

func (h *FileHandler) Download(c *gin.Context) {
	typ, ok := model.ParseRecordType(c.Param("type"))
	if !ok || (typ != model.RecordTypeFile && typ != model.RecordTypeAttachment) {
		response.Error(c, errcode.ErrInvalid, "type must be file or attachment")
		return
	}
	name, size, reader, err := h.corpus.OpenBlob(c.Request.Context(), getUserID(c), typ, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer reader.Close()
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.DataFromReader(200, size, "application/octet-stream", reader, nil)
}
