package httpapi

import (
	"errors"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/userstore"
)

// loginKey keys failed-login throttling by client address.
var loginKey = middleware.KeyByIP("login")

type userView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

func viewOf(u *userstore.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, ProfilePicture: u.ProfilePicture}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Health(r.Context())
	status, store, code := "healthy", "connected", http.StatusOK
	if !st.StoreAvailable {
		status, store, code = "unhealthy", "disconnected", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"store":     store,
	})
}

func (h *handlers) googleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)
	key := loginKey(r)

	code := r.URL.Query().Get("code")
	res, err := h.engine.LoginWithCode(ctx, code)
	if err != nil {
		if errors.Is(err, goSession.ErrAuthFailed) {
			if _, rerr := h.engine.RecordLoginFailure(ctx, key); rerr != nil && !errors.Is(rerr, goSession.ErrRateLimited) {
				log.Warn("record login failure", "error", rerr)
			}
		}
		log.Info("login failed", "code", goSession.KindOf(err))
		writeError(w, r, err)
		return
	}

	if err := h.engine.ResetLoginFailures(ctx, key); err != nil {
		log.Warn("reset login failures", "error", err)
	}
	h.cookies.setLogin(w, res)
	log.Info("login succeeded", "user_id", res.User.ID, "session_id", res.SessionID)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Login successful",
		"user":      viewOf(res.User),
		"csrfToken": res.CSRFToken,
		"expiresIn": seconds(res.ExpiresIn),
	})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	names := h.cookies.names
	res, err := h.engine.Refresh(r.Context(),
		h.cookies.value(r, names.RefreshName),
		h.cookies.value(r, names.FingerprintName),
	)
	if err != nil {
		if !errors.Is(err, goSession.ErrStoreUnavailable) {
			h.cookies.clear(w)
		}
		writeError(w, r, err)
		return
	}

	h.cookies.setRefresh(w, res)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Token refreshed",
		"csrfToken": res.CSRFToken,
		"expiresIn": seconds(res.ExpiresIn),
	})
}

func (h *handlers) accessToken(r *http.Request) string {
	if tok := h.cookies.value(r, h.cookies.names.AccessName); tok != "" {
		return tok
	}
	tok, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	return tok
}

// logout always succeeds for the client; revocation failures are logged.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Logout(r.Context(), goSession.LogoutRequest{
		AccessToken:  h.accessToken(r),
		RefreshToken: h.cookies.value(r, h.cookies.names.RefreshName),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("logout revocation incomplete", "error", err)
	}
	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (h *handlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	n, err := h.engine.LogoutAll(r.Context(), uid, h.accessToken(r))
	log := logging.FromContext(r.Context())
	if err != nil {
		log.Warn("logout-all revocation incomplete", "user_id", uid, "error", err)
	} else {
		log.Info("logged out of all devices", "user_id", uid, "sessions", n)
	}
	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out from all devices"})
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			h.cookies.clear(w)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"user":         viewOf(user),
		"sessionValid": true,
	})
}

func (h *handlers) sessions(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	list, err := h.engine.ListSessions(r.Context(), uid, h.cookies.value(r, h.cookies.names.SessionName))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessions": list})
}

func (h *handlers) csrf(w http.ResponseWriter, r *http.Request) {
	sid := h.cookies.value(r, h.cookies.names.SessionName)
	if sid == "" {
		middleware.WriteRejection(w, errSessionRequired)
		return
	}
	token, err := h.engine.IssueCSRF(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.setCSRF(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"csrfToken": token})
}
