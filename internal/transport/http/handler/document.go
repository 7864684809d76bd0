package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/transport/http/middleware"
	"docrag/internal/transport/http/response"
)

// multipartOverhead is the allowance for form fields and boundaries on top
// of the file itself.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documentService *app.DocumentService
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	maxBytes := h.documentService.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c, maxBytes)
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxBytes {
		h.tooLarge(c, maxBytes)
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		UserID:      userID,
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Title:       c.PostForm("title"),
		Data:        data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrEmptyFile):
			response.Error(c, http.StatusBadRequest, response.CodeEmptyFile, err.Error())
		case errors.Is(err, app.ErrFileTooLarge):
			h.tooLarge(c, maxBytes)
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload document failed")
		}
		return
	}

	c.JSON(http.StatusAccepted, response.APIResponse{Code: response.CodeOK, Message: "ok", Data: doc})
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.documentService.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, documentID, ok := h.identify(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		h.fail(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

// Process schedules a fresh ingestion run. Calling it repeatedly is safe.
func (h *DocumentHandler) Process(c *gin.Context) {
	userID, documentID, ok := h.identify(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Reprocess(c.Request.Context(), userID, documentID)
	if err != nil {
		h.fail(c, err, "schedule processing failed")
		return
	}
	c.JSON(http.StatusAccepted, response.APIResponse{Code: response.CodeOK, Message: "ok", Data: doc})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, documentID, ok := h.identify(c)
	if !ok {
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), userID, documentID); err != nil {
		h.fail(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": documentID})
}

func (h *DocumentHandler) identify(c *gin.Context) (uint, uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, 0, false
	}
	documentID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || documentID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return 0, 0, false
	}
	return userID, uint(documentID64), true
}

func (h *DocumentHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrIngestionInProgress):
		response.Error(c, http.StatusConflict, response.CodeIngestionBusy, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func (h *DocumentHandler) tooLarge(c *gin.Context, maxBytes int64) {
	response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge,
		fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(maxBytes))))
}
