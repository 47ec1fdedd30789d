package rules

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPActionClientSuccess(t *testing.T) {
	var gotMethod, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Test")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPActionClient(0)
	err := client.Do(t.Context(), "post", srv.URL, map[string]string{"X-Test": "yes"}, `{"a":1}`)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotHeader != "yes" {
		t.Fatalf("expected header propagated, got %q", gotHeader)
	}
}

func TestHTTPActionClientNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPActionClient(0)
	if err := client.Do(t.Context(), "GET", srv.URL, nil, ""); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestHTTPActionClientRequiresURL(t *testing.T) {
	client := NewHTTPActionClient(0)
	if err := client.Do(t.Context(), "GET", "", nil, ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}
