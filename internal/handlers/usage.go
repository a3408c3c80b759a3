package handlers

import (
	"net/http"
	"strconv"

	"github.com/BerylCAtieno/invoice-chat-api/internal/middleware"
	"github.com/BerylCAtieno/invoice-chat-api/internal/services"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

type UsageHandler struct {
	responder
	usage services.UsageService
}

func NewUsageHandler(usage services.UsageService, logger *utils.Logger) *UsageHandler {
	return &UsageHandler{
		responder: responder{logger: logger},
		usage:     usage,
	}
}

func (h *UsageHandler) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	months := services.DefaultUsageMonths
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondError(w, utils.NewBadRequestError("months must be a positive integer"))
			return
		}
		months = n
	}

	report, err := h.usage.UserUsage(r.Context(), middleware.UserIDFromContext(r.Context()), months)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

func (h *UsageHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.usage.CacheStats(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}
