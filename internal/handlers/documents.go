package handlers

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/BerylCAtieno/invoice-chat-api/internal/middleware"
	"github.com/BerylCAtieno/invoice-chat-api/internal/services"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
	"github.com/gorilla/mux"
)

const DefaultMaxUploadSize = 20 << 20 // 20MB

type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, upload *services.DocumentUpload) (*services.RunResult, error)
}

type processDocumentRequest struct {
	Type             string   `json:"type"`
	Images           []string `json:"images"`
	OriginalFileName string   `json:"originalFileName"`
	OriginalFile     string   `json:"originalFile,omitempty"`
}

type DocumentHandler struct {
	responder
	pipeline      DocumentProcessor
	maxUploadSize int64
}

func NewDocumentHandler(pipeline DocumentProcessor, maxUploadSize int64, logger *utils.Logger) *DocumentHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &DocumentHandler{
		responder:     responder{logger: logger},
		pipeline:      pipeline,
		maxUploadSize: maxUploadSize,
	}
}

// ProcessDocument runs an uploaded document through the invoice pipeline.
// Terminal pipeline states are reported with 200; only invalid uploads fail.
func (h *DocumentHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	if chatID == "" {
		h.respondError(w, utils.NewBadRequestError("Chat ID is required"))
		return
	}

	if r.ContentLength > h.maxUploadSize {
		h.respondError(w, utils.NewBadRequestError("Request body exceeds the upload size limit"))
		return
	}

	var req processDocumentRequest
	if err := decodeJSON(w, r, h.maxUploadSize, &req); err != nil {
		h.respondError(w, err)
		return
	}

	upload := &services.DocumentUpload{
		ChatID:           chatID,
		UserID:           middleware.UserIDFromContext(r.Context()),
		Type:             req.Type,
		Images:           req.Images,
		OriginalFileName: req.OriginalFileName,
	}
	if req.OriginalFile != "" {
		data, err := base64.StdEncoding.DecodeString(req.OriginalFile)
		if err != nil {
			h.respondError(w, utils.NewBadRequestError("originalFile must be base64 encoded"))
			return
		}
		upload.OriginalFile = data
	}

	h.logger.Info("Document upload",
		"chatId", chatID,
		"type", req.Type,
		"pages", len(req.Images),
		"filename", req.OriginalFileName)

	result, err := h.pipeline.ProcessDocument(r.Context(), upload)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}
