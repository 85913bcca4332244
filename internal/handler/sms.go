package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/moodtracker/internal/inbound"
	"github.com/dukerupert/moodtracker/internal/phone"
)

type MessageProcessor interface {
	Handle(ctx context.Context, rawFrom, body string) (inbound.Outcome, error)
}

// SignatureValidator checks the gateway's request signature.
type SignatureValidator interface {
	ValidRequest(url string, params map[string]string, signature string) bool
}

type SMSHandler struct {
	processor MessageProcessor
	validator SignatureValidator
	baseURL   string
	logger    *slog.Logger
}

// NewSMSHandler handles the inbound SMS webhook. A nil validator disables
// signature checks; baseURL is the public origin the gateway signs against.
func NewSMSHandler(p MessageProcessor, v SignatureValidator, baseURL string, logger *slog.Logger) *SMSHandler {
	return &SMSHandler{
		processor: p,
		validator: v,
		baseURL:   baseURL,
		logger:    logger,
	}
}

func (h *SMSHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error: invalid form data", http.StatusBadRequest)
		return
	}

	if h.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !h.validator.ValidRequest(h.baseURL+r.URL.RequestURI(), params, r.Header.Get("X-Twilio-Signature")) {
			h.logger.Warn("rejected unsigned webhook", "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	outcome, err := h.processor.Handle(r.Context(), r.FormValue("From"), r.FormValue("Body"))
	switch {
	case err == nil:
		h.logger.Debug("inbound sms handled", "outcome", outcome.String())
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, phone.ErrInvalidPhoneNumber):
		http.Error(w, "Error: Invalid 'From' number format", http.StatusBadRequest)
	case errors.Is(err, inbound.ErrUnknownSender), errors.Is(err, inbound.ErrNotSubscribed):
		w.WriteHeader(http.StatusNoContent)
	default:
		h.logger.Error("inbound sms", "error", err)
		http.Error(w, "Error: Could not process message", http.StatusInternalServerError)
	}
}
