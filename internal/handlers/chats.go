package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/invoice-chat-api/internal/middleware"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/services"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
	"github.com/gorilla/mux"
)

type createChatRequest struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title"`
	Visibility string `json:"visibility,omitempty"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type ChatHandler struct {
	responder
	chats services.ChatService
}

func NewChatHandler(chats services.ChatService, logger *utils.Logger) *ChatHandler {
	return &ChatHandler{
		responder: responder{logger: logger},
		chats:     chats,
	}
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.respondError(w, err)
		return
	}

	chat, err := h.chats.CreateChat(r.Context(), middleware.UserIDFromContext(r.Context()), &models.Chat{
		ID:         req.ID,
		Title:      req.Title,
		Visibility: req.Visibility,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.ListChats(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chats.GetMessages(r.Context(), middleware.UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.respondError(w, err)
		return
	}

	reply, err := h.chats.SendMessage(r.Context(), middleware.UserIDFromContext(r.Context()), mux.Vars(r)["id"], req.Content)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, reply)
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.DeleteChat(r.Context(), middleware.UserIDFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
}
