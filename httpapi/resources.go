package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/userstore"
)

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(r.Context(), middleware.UserIDFromContext(r.Context()))
	if errors.Is(err, userstore.ErrUserNotFound) {
		middleware.WriteRejection(w, errProfileNotFound)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": user})
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch userstore.ProfileUpdate
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), middleware.UserIDFromContext(r.Context()), patch)
	if errors.Is(err, userstore.ErrUserNotFound) {
		middleware.WriteRejection(w, errProfileNotFound)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": user})
}

func (h *handlers) listConnections(w http.ResponseWriter, r *http.Request) {
	list, err := h.conns.ListConnections(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []userstore.Connection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
}

type connectionBody struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

func (h *handlers) createConnection(w http.ResponseWriter, r *http.Request) {
	var body connectionBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.conns.CreateConnection(r.Context(), userstore.Connection{
		UserID: middleware.UserIDFromContext(r.Context()),
		Name:   body.Name,
		Type:   body.Type,
		Config: body.Config,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "connectionId": c.ID})
}

func (h *handlers) updateConnection(w http.ResponseWriter, r *http.Request) {
	var body connectionBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.conns.UpdateConnection(r.Context(),
		middleware.UserIDFromContext(r.Context()),
		chi.URLParam(r, "id"),
		userstore.ConnectionPatch{Name: body.Name, Type: body.Type, Config: body.Config},
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "connection": c})
}

func (h *handlers) deleteConnection(w http.ResponseWriter, r *http.Request) {
	err := h.conns.DeleteConnection(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Connection deleted"})
}
