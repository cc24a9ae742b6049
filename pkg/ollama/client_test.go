package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not a url"); err == nil {
		t.Error("Expected an error for a URL without scheme and host")
	}
	if _, err := NewClient("http://localhost:11434/api/chat"); err != nil {
		t.Errorf("Expected a valid client: %v", err)
	}
}

func TestNewChatRequestRejectsBadImage(t *testing.T) {
	if _, err := newChatRequest("m", "p", "%%%"); err == nil {
		t.Error("Expected an error for invalid base64")
	}
	req, err := newChatRequest("m", "p", "aGVsbG8=")
	if err != nil {
		t.Fatalf("newChatRequest failed: %v", err)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
		t.Errorf("Expected one message with one image, got %+v", req.Messages)
	}
	if req.Stream == nil || *req.Stream {
		t.Error("Expected streaming to be disabled")
	}
}

func TestClassifyImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   req.Model,
			Message: api.Message{Role: "assistant", Content: `{"label": "Artifact", "confidence": 0.8}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	res, err := c.ClassifyImage(context.Background(), "llava", "classify", "aGVsbG8=")
	if err != nil {
		t.Fatalf("ClassifyImage failed: %v", err)
	}
	if res.Label != "Artifact" || res.Confidence != 0.8 {
		t.Errorf("Unexpected result %+v", res)
	}
}
