package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

// NewRouter wires every route. Mutating operator endpoints sit behind
// RequireToken.
func NewRouter(d Deps) *mux.Router {
	if d.Log == nil {
		d.Log = hclog.NewNullLogger()
	}
	log := d.Log.Named("http")

	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(RequestID), mux.MiddlewareFunc(Recover(log)), mux.MiddlewareFunc(AccessLog(log)), mux.MiddlewareFunc(Cors))

	hh := HealthHandler{}
	r.HandleFunc("/health", hh.Health).Methods(http.MethodGet)

	qh := QueueHandler{Queue: d.Queue, Discovery: d.Discovery}
	r.HandleFunc("/queue", qh.Status).Methods(http.MethodGet)

	jh := JobsHandler{Store: d.Store, Queue: d.Queue, Boards: d.Boards}
	r.HandleFunc("/jobs/{id}", jh.Get).Methods(http.MethodGet)

	eh := EventsHandler{Hub: d.Hub}
	r.HandleFunc("/events", eh.ServeAll).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/events", eh.ServeJob).Methods(http.MethodGet)

	bh := BoardsHandler{Boards: d.Boards, Secrets: d.Secrets}
	r.HandleFunc("/boards", bh.List).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}", bh.Get).Methods(http.MethodGet)

	ch := ConfigHandler{Cfg: d.Config, UserCfgPath: d.UserCfgPath}
	r.HandleFunc("/config", ch.Get).Methods(http.MethodGet)
	r.HandleFunc("/config/path", ch.Path).Methods(http.MethodGet)
	r.HandleFunc("/config/validate", ch.Validate).Methods(http.MethodGet)

	op := r.NewRoute().Subrouter()
	op.Use(mux.MiddlewareFunc(RequireToken(d.JWTSecret)))
	op.HandleFunc("/jobs", jh.Create).Methods(http.MethodPost)
	op.HandleFunc("/jobs/{id}/enqueue", jh.Enqueue).Methods(http.MethodPost)
	op.HandleFunc("/postings/{id}/retry", jh.RetryPosting).Methods(http.MethodPost)
	if d.Secrets != nil {
		sh := SecretsHandler{Secrets: d.Secrets}
		op.HandleFunc("/secrets/imap", sh.SetIMAPPassword).Methods(http.MethodPost)
		op.HandleFunc("/boards/{id}/credentials", bh.SetCredentials).Methods(http.MethodPut)
		op.HandleFunc("/boards/{id}/credentials", bh.DeleteCredentials).Methods(http.MethodDelete)
	}

	// preflight; Cors answers it
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
