package imagejob

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitAccepted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != EndpointManifest {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected Authorization %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "client-1" {
			t.Errorf("unexpected x-api-key %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"_links":{"self":{"href":"http://poll.example/status/1"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1", "client-1")
	sub, err := c.Submit(context.Background(), EndpointManifest, map[string]any{"inputs": []any{}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.PollURL != "http://poll.example/status/1" {
		t.Fatalf("unexpected poll URL %q", sub.PollURL)
	}
}

func TestSubmitRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":400,"title":"bad input"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "client")
	_, err := c.Submit(context.Background(), EndpointOperations, map[string]any{})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %v", err)
	}
	if subErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", subErr.Status)
	}
	if subErr.Body == "" {
		t.Fatal("expected raw body to be carried for diagnostics")
	}
}

func TestFetchStatusParsesOutputs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"outputs":[{"status":"succeeded","layers":[{"type":"textLayer","name":"A","text":{"content":"Hi"}}]}]}`))
	}))
	defer srv.Close()

	c := NewClient("http://unused.invalid", "tok", "client")
	status, err := c.FetchStatus(context.Background(), srv.URL, "manifest")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if len(status.Outputs) != 1 || status.Outputs[0].Status != StatusSucceeded {
		t.Fatalf("unexpected status response: %#v", status)
	}
	if len(status.Outputs[0].Layers) != 1 || status.Outputs[0].Layers[0].Name != "A" {
		t.Fatalf("unexpected layers: %#v", status.Outputs[0].Layers)
	}
}

func TestFetchStatusTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("http://unused.invalid", "tok", "client")
	_, err := c.FetchStatus(context.Background(), srv.URL, "edit")
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if transport.Op != "edit" || transport.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected error detail: %#v", transport)
	}
}
