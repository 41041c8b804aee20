package httpapi

import (
	"net/http"
)

type SecretsHandler struct {
	Secrets SecretWriter
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Secrets.SetIMAPPassword(req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keychain_error", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
