package cloudflare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cf "github.com/cloudflare/cloudflare-go"
	. "github.com/onsi/gomega"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	api, err := cf.NewWithAPIToken("test-token", cf.BaseURL(srv.URL+"/client/v4"))
	Expect(err).To(BeNil())
	return &Client{api: api, apiToken: "test-token", accountID: "acct-1"}, srv.Close
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func Test_EnsureARecord_CreatesWhenAbsent(t *testing.T) {
	RegisterTestingT(t)

	var created bool
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			writeJSON(w, map[string]interface{}{"success": true, "result": []interface{}{}, "result_info": map[string]interface{}{"total_count": 0}})
		case r.Method == http.MethodPost:
			created = true
			writeJSON(w, map[string]interface{}{"success": true, "result": map[string]interface{}{"id": "rec-1", "name": "app.example.com", "type": "A", "content": "1.2.3.4"}})
		}
	})
	defer closeSrv()

	err := client.EnsureARecord(context.Background(), "zone-1", "app.example.com", "1.2.3.4", true)
	Expect(err).To(BeNil())
	Expect(created).To(BeTrue())
}

func Test_EnsureARecord_NoopWhenUnchanged(t *testing.T) {
	RegisterTestingT(t)

	var postCalled bool
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			writeJSON(w, map[string]interface{}{
				"success": true,
				"result": []map[string]interface{}{
					{"id": "rec-1", "name": "app.example.com", "type": "A", "content": "1.2.3.4"},
				},
				"result_info": map[string]interface{}{"total_count": 1},
			})
		case r.Method == http.MethodPost || r.Method == http.MethodPatch:
			postCalled = true
		}
	})
	defer closeSrv()

	err := client.EnsureARecord(context.Background(), "zone-1", "app.example.com", "1.2.3.4", true)
	Expect(err).To(BeNil())
	Expect(postCalled).To(BeFalse())
}
