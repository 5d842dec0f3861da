package server_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Tyrowin/gridduel/internal/game"
	"github.com/Tyrowin/gridduel/internal/server"
	"github.com/Tyrowin/gridduel/internal/testhelpers"
)

type testApp struct {
	srv      *httptest.Server
	hub      *server.Hub
	registry *game.Registry
}

func (a *testApp) url(path string) string {
	return a.srv.URL + path
}

func (a *testApp) wsURL() string {
	return testhelpers.WebSocketURL(a.srv.URL)
}

// newTestApp wires a hub, a registry and the router the way main does and
// serves them from an httptest server.
func newTestApp(t *testing.T, mutate func(*game.Options)) *testApp {
	t.Helper()

	hub := server.NewHub()
	server.StartHub(hub)

	opts := server.CurrentConfig().GameOptions()
	opts.Notifier = hub
	if mutate != nil {
		mutate(&opts)
	}
	registry := game.NewRegistry(opts)

	srv := testhelpers.CreateTestServer(server.NewRouter(server.NewHandler(registry, hub)))
	t.Cleanup(func() {
		srv.Close()
		registry.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &testApp{srv: srv, hub: hub, registry: registry}
}
