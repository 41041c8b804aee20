package httpapi

import (
	"net/http"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
)

// ConfigHandler exposes the running configuration read-only. Secrets are
// tagged out of the YAML encoding, so the file form is what gets served.
type ConfigHandler struct {
	Cfg         config.Config
	UserCfgPath string
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := yaml.Marshal(h.Cfg)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(b)
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.UserCfgPath)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.Cfg)
	WriteJSON(w, http.StatusOK, vr)
}
