package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docrag/internal/ai"
	"docrag/internal/app"
	"docrag/internal/transport/http/middleware"
	"docrag/internal/transport/http/response"
)

const (
	msgRateLimited     = "Rate limits exceeded, please try again later."
	msgPaymentRequired = "service unavailable, contact the operator"
	msgGatewayError    = "AI gateway error"

	headerContextChunks = "X-Context-Chunks"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatMessageRequest struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessageRequest `json:"messages" binding:"required,min=1,dive"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Grounded answers with context retrieved from the caller's documents.
func (h *ChatHandler) Grounded(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	h.stream(c, &userID)
}

// Anonymous answers from the persona prompt alone.
func (h *ChatHandler) Anonymous(c *gin.Context) {
	h.stream(c, nil)
}

func (h *ChatHandler) stream(c *gin.Context, userID *uint) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	messages := make([]ai.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := h.chatService.Open(c.Request.Context(), app.ChatInput{UserID: userID, Messages: messages})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyMessage):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case ai.IsKind(err, ai.KindRateLimited):
			response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, msgRateLimited)
		case ai.IsKind(err, ai.KindUnavailable):
			response.Error(c, http.StatusPaymentRequired, response.CodePaymentRequired, msgPaymentRequired)
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeGatewayError, msgGatewayError)
		}
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header(headerContextChunks, strconv.Itoa(stream.ContextChunks))
	c.Status(http.StatusOK)

	if err := stream.Relay(flushWriter{w: c.Writer}); err != nil {
		slog.Warn("relay chat stream failed", "error", err)
	}
}

// flushWriter pushes every write to the client immediately.
type flushWriter struct {
	w gin.ResponseWriter
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil {
		fw.w.Flush()
	}
	return n, err
}
