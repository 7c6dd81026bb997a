// Package email is the transactional mail sink and the client the worker
// uses to reach it.
package email

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/faizu526/zerotohero/internal/httpx"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /send", h.HandleSend)
}

type sendResponse struct {
	Status string `json:"status"`
}

// HandleSend accepts a message and only logs it.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := httpx.DecodeJSON(r, &msg); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.Contains(msg.To, "@") || msg.Subject == "" {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "recipient and subject are required")
		return
	}

	h.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)

	httpx.WriteJSON(w, h.logger, http.StatusOK, sendResponse{Status: "sent"})
}
