package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/secrets"
)

func TestShutdownHandler(t *testing.T) {
	stopped := 0
	h := shutdownHandler("tok", func() { stopped++ })

	req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	req.Header.Set("X-Shutdown-Token", "tok")
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "remote callers are refused")

	req.RemoteAddr = "127.0.0.1:50000"
	req.Header.Set("X-Shutdown-Token", "wrong")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("X-Shutdown-Token", "tok")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stopped)
}

func TestNewDiscovery(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.Primary = "heuristic"
	cfg.Discovery.Fallback = ""
	svc, err := newDiscovery(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.Zero(t, svc.Totals().Operations)

	cfg.Discovery.Primary = "openai"
	_, err = newDiscovery(cfg, hclog.NewNullLogger())
	assert.ErrorContains(t, err, "discovery.providers.openai")
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	st, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestOpenStore_SQLiteInDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.App.DataDir = t.TempDir()
	st, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer st.Close()
	assert.FileExists(t, cfg.App.DataDir+"/postjob.db")
}

func TestNewConfirmer_DisabledWithoutEmail(t *testing.T) {
	cfg := config.Default()
	assert.Nil(t, newConfirmer(cfg, secrets.NewStore(cfg), hclog.NewNullLogger()))
}
