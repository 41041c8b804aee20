package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type BoardsHandler struct {
	Boards  Boards
	Secrets SecretWriter
}

func (h BoardsHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Boards.All())
}

func (h BoardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, ok := h.Boards.Board(mux.Vars(r)["id"])
	if !ok {
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown board")
		return
	}
	WriteJSON(w, http.StatusOK, b)
}

// SetCredentials stores a board login in the OS keychain.
func (h BoardsHandler) SetCredentials(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.Boards.Board(id); !ok {
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown board")
		return
	}
	var req setCredentialsReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_credentials", "password is required")
		return
	}
	if err := h.Secrets.SetBoardCredentials(id, req.Username, req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keychain_error", "failed to store credentials: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h BoardsHandler) DeleteCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.Secrets.DeleteBoardCredentials(mux.Vars(r)["id"]); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keychain_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
