package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetJSONTransportErrorHidesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL + "/books?q=horror&key=secret-key"
	srv.Close()

	c := NewHTTPClient(time.Second, RetryPolicy{})
	err := c.GetJSON(context.Background(), target, nil, nil)
	if err == nil {
		t.Fatalf("expected transport error from closed server")
	}
	if strings.Contains(err.Error(), "secret-key") || strings.Contains(err.Error(), "q=horror") {
		t.Fatalf("query string leaked into error: %v", err)
	}
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	var out map[string]any
	err := NewHTTPClient(time.Second, RetryPolicy{}).GetJSON(context.Background(), srv.URL, nil, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}
