package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bybench/internal/ids"
	"bybench/internal/middleware"
	"bybench/internal/service"
)

type startConversationRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required,uuid"`
}

func (h HandlerSet) StartConversation(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	conv, created, err := h.chat.GetOrCreate(c.Request.Context(), currentUser(c).ID, req.TargetUserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, gin.H{"conversation": conv})
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required,uuid"`
	Text           string `json:"text" binding:"max=5000"`
	FileURL        string `json:"fileUrl" binding:"omitempty,url"`
	FileType       string `json:"fileType" binding:"max=100"`
}

// SendMessage accepts JSON, or multipart with at most one image under "images".
func (h HandlerSet) SendMessage(c *gin.Context) {
	user := currentUser(c)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.sendMultipartMessage(c, user.ID)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	h.sendMessage(c, service.SendInput{
		ConversationID: req.ConversationID,
		SenderID:       user.ID,
		Text:           req.Text,
		FileURL:        req.FileURL,
		FileType:       req.FileType,
	})
}

func (h HandlerSet) sendMultipartMessage(c *gin.Context, senderID string) {
	form, err := c.MultipartForm()
	if err != nil {
		h.bindError(c, err)
		return
	}

	conversationID := c.PostForm("conversationId")
	if !ids.Valid(conversationID) {
		middleware.Fail(c, http.StatusBadRequest, "validation_error", "conversationId must be a valid uuid")
		return
	}
	files := form.File["images"]
	if len(files) > 1 {
		middleware.Fail(c, http.StatusBadRequest, "validation_error", "only one image can be attached per message")
		return
	}

	input := service.SendInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           c.PostForm("text"),
	}
	if len(files) == 0 {
		h.sendMessage(c, input)
		return
	}

	// Check access before anything is uploaded.
	if _, err := h.chat.Get(c.Request.Context(), conversationID, senderID); err != nil {
		h.respondError(c, err)
		return
	}

	file, err := files[0].Open()
	if err != nil {
		h.bindError(c, err)
		return
	}
	defer file.Close()

	attachment, err := h.attachments.Upload(c.Request.Context(), service.AttachmentInput{
		Filename: files[0].Filename,
		Size:     files[0].Size,
		Body:     file,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	input.FileURL = attachment.URL
	input.FileType = attachment.MIMEType
	h.sendMessage(c, input)
}

func (h HandlerSet) sendMessage(c *gin.Context, input service.SendInput) {
	msg, err := h.chat.Send(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"message": msg})
}

func (h HandlerSet) ListConversations(c *gin.Context) {
	conversations, err := h.chat.ListConversations(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"conversations": conversations})
}

func (h HandlerSet) ListMessages(c *gin.Context) {
	conversationID, valid := pathID(c, "conversationId")
	if !valid {
		return
	}

	messages, err := h.chat.ListAndMarkRead(c.Request.Context(), conversationID, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": messages})
}

func (h HandlerSet) BlockConversation(c *gin.Context) {
	conversationID, valid := pathID(c, "conversationId")
	if !valid {
		return
	}

	conv, err := h.chat.Block(c.Request.Context(), conversationID, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Conversation blocked", "conversation": conv})
}

func (h HandlerSet) UnblockConversation(c *gin.Context) {
	conversationID, valid := pathID(c, "conversationId")
	if !valid {
		return
	}

	conv, err := h.chat.Unblock(c.Request.Context(), conversationID, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Conversation unblocked", "conversation": conv})
}

func (h HandlerSet) DeleteConversation(c *gin.Context) {
	conversationID, valid := pathID(c, "conversationId")
	if !valid {
		return
	}

	if err := h.chat.Delete(c.Request.Context(), conversationID, currentUser(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Conversation deleted"})
}

func (h HandlerSet) OnlineUsers(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"onlineUsers": h.hub.OnlineUsers()})
}

func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !ids.Valid(id) {
		middleware.Fail(c, http.StatusBadRequest, "validation_error", name+" must be a valid uuid")
		return "", false
	}
	return id, true
}
