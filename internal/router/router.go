package router

import (
	"net/http"

	"github.com/BerylCAtieno/invoice-chat-api/internal/handlers"
	"github.com/BerylCAtieno/invoice-chat-api/internal/middleware"
	"github.com/BerylCAtieno/invoice-chat-api/internal/services"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"

	"github.com/gorilla/mux"
)

type Services struct {
	Pipeline      handlers.DocumentProcessor
	Invoices      services.InvoiceService
	Chats         services.ChatService
	Usage         services.UsageService
	MaxUploadSize int64
}

func NewRouter(svc Services, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	docHandler := handlers.NewDocumentHandler(svc.Pipeline, svc.MaxUploadSize, logger)
	invoiceHandler := handlers.NewInvoiceHandler(svc.Invoices, svc.Usage, logger)
	chatHandler := handlers.NewChatHandler(svc.Chats, logger)
	usageHandler := handlers.NewUsageHandler(svc.Usage, logger)

	// Preflight requests match no method-restricted route; CORS answers them here.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	user := api.NewRoute().Subrouter()
	user.Use(middleware.RequireUser())

	// Chat endpoints
	user.HandleFunc("/chats", chatHandler.CreateChat).Methods(http.MethodPost)
	user.HandleFunc("/chats", chatHandler.ListChats).Methods(http.MethodGet)
	user.HandleFunc("/chats/{id}/messages", chatHandler.GetMessages).Methods(http.MethodGet)
	user.HandleFunc("/chats/{id}/messages", chatHandler.SendMessage).Methods(http.MethodPost)
	user.HandleFunc("/chats/{id}", chatHandler.DeleteChat).Methods(http.MethodDelete)
	user.HandleFunc("/chats/{id}/documents", docHandler.ProcessDocument).Methods(http.MethodPost)

	// Invoice endpoints
	user.HandleFunc("/invoices", invoiceHandler.ListInvoices).Methods(http.MethodGet)
	user.HandleFunc("/invoices/{id}", invoiceHandler.GetInvoice).Methods(http.MethodGet)
	user.HandleFunc("/invoices/{id}", invoiceHandler.UpdateInvoice).Methods(http.MethodPut)
	user.HandleFunc("/invoices/{id}", invoiceHandler.DeleteInvoice).Methods(http.MethodDelete)
	user.HandleFunc("/invoices/{id}/usage", invoiceHandler.GetInvoiceUsage).Methods(http.MethodGet)

	// Usage endpoints
	user.HandleFunc("/usage", usageHandler.GetUserUsage).Methods(http.MethodGet)
	user.HandleFunc("/cache/stats", usageHandler.GetCacheStats).Methods(http.MethodGet)

	return r
}
