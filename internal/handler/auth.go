package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/moodtracker/internal/auth"
	"github.com/dukerupert/moodtracker/internal/middleware"
	"github.com/dukerupert/moodtracker/internal/model"
	"github.com/dukerupert/moodtracker/internal/otp"
	"github.com/dukerupert/moodtracker/internal/phone"
	"github.com/dukerupert/moodtracker/internal/sms"
	"github.com/dukerupert/moodtracker/internal/store"
)

const sessionMaxAge = 90 * 24 * 60 * 60 // 90 days

type AuthHandler struct {
	normalizer  phone.Normalizer
	otp         *otp.Issuer
	identities  *store.IdentityStore
	subscribers *store.SubscriberStore
	sessions    *store.SessionStore
	sender      sms.Sender
	pending     *auth.PendingSigner
	secure      bool
	*renderer
}

func NewAuthHandler(
	n phone.Normalizer,
	issuer *otp.Issuer,
	ids *store.IdentityStore,
	subs *store.SubscriberStore,
	ss *store.SessionStore,
	sender sms.Sender,
	pending *auth.PendingSigner,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		normalizer:  n,
		otp:         issuer,
		identities:  ids,
		subscribers: subs,
		sessions:    ss,
		sender:      sender,
		pending:     pending,
		secure:      secureCookies,
		renderer:    newRenderer(logger),
	}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromRequest(r, h.sessions) != nil {
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", map[string]any{"Title": "Sign in", "Phone": ""})
}

// Login issues a code for the submitted phone number and texts it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromRequest(r, h.sessions) != nil {
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
		return
	}

	raw := strings.TrimSpace(r.FormValue("phone_number"))
	number, err := h.normalizer.Normalize(raw)
	if err != nil {
		h.loginError(w, r, http.StatusBadRequest, raw,
			"Invalid phone number format. Please include your country code, e.g. +1 201 555 0123.")
		return
	}

	code, err := h.otp.Issue(r.Context(), number)
	if err != nil {
		h.logger.Error("issue code", "error", err)
		h.loginError(w, r, http.StatusInternalServerError, raw, "Failed to send a code. Please try again.")
		return
	}
	if err := h.sender.Send(r.Context(), number, sms.OTPMessage(code)); err != nil {
		h.logger.Error("send code", "phone", number, "error", err)
		h.loginError(w, r, http.StatusBadGateway, raw, "Failed to send a code. Please try again.")
		return
	}

	token, err := h.pending.Sign(number)
	if err != nil {
		h.logger.Error("sign pending token", "error", err)
		h.loginError(w, r, http.StatusInternalServerError, raw, "Something went wrong. Please try again.")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.PendingCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.PendingTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secure,
	})

	h.logger.Info("code sent", "phone", number)
	setFlash(w, "info", "Code sent to "+number+". Please check your messages.")
	http.Redirect(w, r, "/verify", http.StatusSeeOther)
}

func (h *AuthHandler) loginError(w http.ResponseWriter, r *http.Request, status int, raw, msg string) {
	h.render(w, r, status, "login.html", map[string]any{
		"Title":   "Sign in",
		"Phone":   raw,
		"Flashes": []flash{{Kind: "danger", Message: msg}},
	})
}

// pendingPhone returns the phone awaiting verification, or "" if the login
// step has not been completed recently.
func (h *AuthHandler) pendingPhone(r *http.Request) string {
	c, err := r.Cookie(auth.PendingCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	number, err := h.pending.Verify(c.Value)
	if err != nil {
		return ""
	}
	return number
}

func (h *AuthHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromRequest(r, h.sessions) != nil {
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
		return
	}
	number := h.pendingPhone(r)
	if number == "" {
		setFlash(w, "warning", "Please provide your phone number first.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "verify.html", map[string]any{"Title": "Verify", "Phone": number})
}

// Verify checks the submitted code. On success the phone gets an identity
// (created on first sign-in), is marked subscribed and receives a session.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	number := h.pendingPhone(r)
	if number == "" {
		setFlash(w, "warning", "Please provide your phone number first.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	code := r.FormValue("otp")
	if err := h.otp.Verify(r.Context(), number, code); err != nil {
		status, msg := http.StatusBadRequest, "Invalid or expired code. Please try again."
		if !errors.Is(err, otp.ErrExpiredOrIncorrect) {
			h.logger.Error("verify code", "phone", number, "error", err)
			status, msg = http.StatusInternalServerError, "Something went wrong. Please try again."
		}
		h.render(w, r, status, "verify.html", map[string]any{
			"Title":   "Verify",
			"Phone":   number,
			"Flashes": []flash{{Kind: "danger", Message: msg}},
		})
		return
	}

	ctx := r.Context()
	ident, created, err := h.identities.FindOrCreate(ctx, number)
	if err != nil {
		h.verifyFailed(w, r, "find or create identity", err)
		return
	}
	subscribed := true
	if _, err := h.subscribers.Upsert(ctx, ident.ID, number, model.SubscriberFields{IsSubscribed: &subscribed}); err != nil {
		h.verifyFailed(w, r, "upsert subscriber", err)
		return
	}
	sess, err := h.sessions.Create(ctx, ident.ID)
	if err != nil {
		h.verifyFailed(w, r, "create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secure,
	})
	clearCookie(w, auth.PendingCookieName)

	if err := h.sender.Send(ctx, number, sms.WelcomeMessage); err != nil {
		h.logger.Warn("send welcome", "user_id", ident.ID, "error", err)
	}

	h.logger.Info("signed in", "user_id", ident.ID, "new_identity", created)
	setFlash(w, "success", "Successfully subscribed and logged in!")
	http.Redirect(w, r, "/calendar", http.StatusSeeOther)
}

func (h *AuthHandler) verifyFailed(w http.ResponseWriter, r *http.Request, step string, err error) {
	h.logger.Error(step, "error", err)
	setFlash(w, "danger", "Sign-in failed after verification. Please try again.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.SessionFromRequest(r, h.sessions); sess != nil {
		if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	clearCookie(w, middleware.SessionCookieName)
	setFlash(w, "info", "You have been logged out.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
