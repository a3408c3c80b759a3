package handlers

import (
	"net/http"
	"strconv"

	"github.com/BerylCAtieno/invoice-chat-api/internal/middleware"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/services"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
	"github.com/gorilla/mux"
)

const maxJSONBody = 1 << 20

type InvoiceHandler struct {
	responder
	invoices services.InvoiceService
	usage    services.UsageService
}

func NewInvoiceHandler(invoices services.InvoiceService, usage services.UsageService, logger *utils.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		responder: responder{logger: logger},
		invoices:  invoices,
		usage:     usage,
	}
}

func (h *InvoiceHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.ListInvoices(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	inv, err := h.invoices.GetInvoice(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var upd models.InvoiceUpdate
	if err := decodeJSON(w, r, maxJSONBody, &upd); err != nil {
		h.respondError(w, err)
		return
	}

	inv, err := h.invoices.UpdateInvoice(r.Context(), middleware.UserIDFromContext(r.Context()), id, &upd)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deleteChat := false
	if v := r.URL.Query().Get("deleteChat"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.respondError(w, utils.NewBadRequestError("deleteChat must be true or false"))
			return
		}
		deleteChat = parsed
	}

	if err := h.invoices.DeleteInvoice(r.Context(), middleware.UserIDFromContext(r.Context()), id, deleteChat); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Invoice deleted successfully"})
}

func (h *InvoiceHandler) GetInvoiceUsage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	events, err := h.usage.InvoiceUsage(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, events)
}
