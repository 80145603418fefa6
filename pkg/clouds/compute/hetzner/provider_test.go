package hetzner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	p := New("test-token")
	p.http.BaseURL = srv.URL
	return p, srv.Close
}

func Test_FindOrCreateServer_ReturnsExistingWhenPresent(t *testing.T) {
	RegisterTestingT(t)

	p, closeSrv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		Expect(r.Method).To(Equal(http.MethodGet))
		Expect(r.URL.Query().Get("name")).To(Equal("web-1"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"servers": []map[string]interface{}{
				{"id": 42, "name": "web-1", "status": "running", "public_net": map[string]interface{}{"ipv4": map[string]string{"ip": "1.2.3.4"}}},
			},
		})
	})
	defer closeSrv()

	server, err := p.FindOrCreateServer(context.Background(), compute.CreateServerInput{Name: "web-1"})
	Expect(err).To(BeNil())
	Expect(server.ID).To(Equal("42"))
	Expect(server.PublicIPv4).To(Equal("1.2.3.4"))
}

func Test_FindOrCreateServer_CreatesWhenAbsent(t *testing.T) {
	RegisterTestingT(t)

	var createCalled bool
	p, closeSrv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"servers": []interface{}{}})
		case http.MethodPost:
			createCalled = true
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"server": map[string]interface{}{"id": 99, "name": "web-2", "status": "initializing"},
			})
		}
	})
	defer closeSrv()

	server, err := p.FindOrCreateServer(context.Background(), compute.CreateServerInput{Name: "web-2", InstanceType: "cx22"})
	Expect(err).To(BeNil())
	Expect(createCalled).To(BeTrue())
	Expect(server.ID).To(Equal("99"))
}

func Test_FindOrCreateServer_SwallowsIdempotentConflict(t *testing.T) {
	RegisterTestingT(t)

	calls := 0
	p, closeSrv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			calls++
			if calls == 1 {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"servers": []interface{}{}})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"servers": []map[string]interface{}{{"id": 7, "name": "web-3"}},
			})
		case http.MethodPost:
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": "uniqueness violation"})
		}
	})
	defer closeSrv()

	server, err := p.FindOrCreateServer(context.Background(), compute.CreateServerInput{Name: "web-3"})
	Expect(err).To(BeNil())
	Expect(server.ID).To(Equal("7"))
}

func Test_DeleteServerByName_NoopWhenAbsent(t *testing.T) {
	RegisterTestingT(t)

	p, closeSrv := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"servers": []interface{}{}})
	})
	defer closeSrv()

	err := p.DeleteServerByName(context.Background(), "nonexistent")
	Expect(err).To(BeNil())
}
