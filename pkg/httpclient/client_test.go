package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"
)

func Test_Client_Get(t *testing.T) {
	RegisterTestingT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","name":"server-1"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-token")

	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	err := client.Get(context.Background(), "/servers/42", nil, &out)
	Expect(err).To(BeNil())
	Expect(out.Name).To(Equal("server-1"))
}

func Test_Client_NonSuccessStatusReturnsApiError(t *testing.T) {
	RegisterTestingT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"server not found"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-token")
	err := client.Get(context.Background(), "/servers/missing", nil, nil)

	Expect(err).NotTo(BeNil())
	apiErr, ok := err.(*ApiError)
	Expect(ok).To(BeTrue())
	Expect(apiErr.NotFound()).To(BeTrue())
	Expect(apiErr.Message).To(Equal("server not found"))
}

func Test_Client_RateLimited(t *testing.T) {
	RegisterTestingT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	err := client.Post(context.Background(), "/x", map[string]string{"a": "b"}, nil)

	apiErr, ok := err.(*ApiError)
	Expect(ok).To(BeTrue())
	Expect(apiErr.RateLimited()).To(BeTrue())
}
