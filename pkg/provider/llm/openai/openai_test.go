package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/realtalk/pkg/provider/llm"
)

func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()

	sys, err := convertMessage(llm.Message{Role: llm.RoleSystem, Content: "be brief"})
	if err != nil || sys.OfSystem == nil {
		t.Fatalf("system: OfSystem=%v err=%v", sys.OfSystem, err)
	}
	user, err := convertMessage(llm.Message{Role: llm.RoleUser, Content: "namaste"})
	if err != nil || user.OfUser == nil {
		t.Fatalf("user: OfUser=%v err=%v", user.OfUser, err)
	}
	asst, err := convertMessage(llm.Message{Role: llm.RoleAssistant, Content: "hello"})
	if err != nil || asst.OfAssistant == nil {
		t.Fatalf("assistant: OfAssistant=%v err=%v", asst.OfAssistant, err)
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()

	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL("https://llm.example.com"), WithOrganization("org-1"))
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
	if p.Name() != "openai/gpt-4o-mini" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestComplete_EmptyMessages(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for request without messages")
	}
}

func TestComplete_AgainstFakeServer(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "How are you?"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Translate Hindi to English.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "आप कैसे हैं?"}},
		Temperature:  0.2,
		MaxTokens:    200,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "How are you?" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 16 {
		t.Errorf("TotalTokens = %d, want 16", resp.Usage.TotalTokens)
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want system + user", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first role = %v, want system", first["role"])
	}
}

func TestComplete_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad model", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	})
	if err == nil {
		t.Fatal("expected error from 400 response")
	}
}
