package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ecarrera/vpn-core/vpn"
)

const serverListJSON = `[
  {"id": "nl-1", "name": "Amsterdam 1", "country_code": "NL", "protocols": ["OPENVPN", "IKEV2"]},
  {"id": "us-3", "name": "New York 3", "country_code": "US", "protocols": ["OPENVPN"]}
]`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		CachePath:  filepath.Join(t.TempDir(), "servers.json"),
	}
}

func TestServers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/servers" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(serverListJSON))
	}))

	servers, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("Servers: %v", err)
	}

	want := []ServerSummary{
		{ID: "nl-1", Name: "Amsterdam 1", CountryCode: "NL", Protocols: []string{"OPENVPN", "IKEV2"}},
		{ID: "us-3", Name: "New York 3", CountryCode: "US", Protocols: []string{"OPENVPN"}},
	}
	if diff := cmp.Diff(want, servers); diff != "" {
		t.Errorf("server list mismatch (-want +got):\n%s", diff)
	}
}

func TestServersFallsBackToCache(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(serverListJSON))
	}))

	first, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("first Servers: %v", err)
	}

	// Directory is now down; the cached list must still be served.
	second, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("Servers with directory down: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached list differs from fetched list (-first +second):\n%s", diff)
	}
}

func TestServersUnavailableWithoutCache(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, err := c.Servers(context.Background())
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Errorf("Servers = %v, want ErrDirectoryUnavailable", err)
	}
}

func TestServerConfiguration(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/servers/nl-1/config" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("protocol"); got != "OPENVPN" {
			t.Errorf("protocol query = %q, want OPENVPN", got)
		}
		w.Write([]byte(`{
			"id": "nl-1",
			"name": "Amsterdam 1",
			"protocol": "OPENVPN",
			"template": "remote vpn1.example.net 1194\ncipher AES-256-GCM\n",
			"host": "vpn1.example.net",
			"username": "alice",
			"password": "hunter2"
		}`))
	}))

	cfg, err := c.ServerConfiguration(context.Background(), "nl-1", vpn.ProtocolOpenVPN)
	if err != nil {
		t.Fatalf("ServerConfiguration: %v", err)
	}
	if cfg.ID != "nl-1" || cfg.Host != "vpn1.example.net" || cfg.Username != "alice" {
		t.Errorf("unexpected configuration: %+v", cfg)
	}
	if cfg.Template == "" {
		t.Error("configuration has no template")
	}
}

func TestServerConfigurationNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(http.NotFound))

	_, err := c.ServerConfiguration(context.Background(), "nope", vpn.ProtocolOpenVPN)
	if !errors.Is(err, ErrServerNotFound) {
		t.Errorf("ServerConfiguration = %v, want ErrServerNotFound", err)
	}
}

func TestServerConfigurationRejectsEmptyTemplate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "nl-1", "protocol": "OPENVPN"}`))
	}))

	if _, err := c.ServerConfiguration(context.Background(), "nl-1", vpn.ProtocolOpenVPN); err == nil {
		t.Error("expected error for configuration without template")
	}
}

func TestSupportsProtocol(t *testing.T) {
	s := ServerSummary{Protocols: []string{"OPENVPN", "IKEV2"}}
	if !s.SupportsProtocol(vpn.ProtocolOpenVPN) || !s.SupportsProtocol(vpn.ProtocolIKEv2) {
		t.Error("advertised protocols not recognized")
	}
	if s.SupportsProtocol(vpn.ProtocolWireGuard) {
		t.Error("unadvertised protocol reported as supported")
	}
}
