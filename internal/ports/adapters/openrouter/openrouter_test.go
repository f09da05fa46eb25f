package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionBody(content any) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestSuggest(t *testing.T) {
	var gotPath, gotAuth string
	var gotPrompt string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.Messages) == 1 {
			gotPrompt = payload.Messages[0].Content
		}
		io.WriteString(w, completionBody("7"))
	}))
	defer ts.Close()

	a := New("sk-test", "test/model", ts.URL)
	got, err := a.Suggest(context.Background(), "here is the key idea", 30)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got != "7" {
		t.Fatalf("suggest = %q, want %q", got, "7")
	}
	if gotPath != "/api/v1/chat/completions" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if !strings.Contains(gotPrompt, "here is the key idea") {
		t.Fatalf("prompt missing transcript: %q", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "less than 30") {
		t.Fatalf("prompt missing upper bound: %q", gotPrompt)
	}
}

func TestSuggest_ContentParts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, completionBody([]any{
			map[string]any{"type": "text", "text": "1"},
			map[string]any{"type": "text", "text": "2"},
		}))
	}))
	defer ts.Close()

	a := New("k", "m", ts.URL)
	got, err := a.Suggest(context.Background(), "t", 30)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got != "12" {
		t.Fatalf("suggest = %q, want %q", got, "12")
	}
}

func TestSuggest_HTTPErrorRedactsSecrets(t *testing.T) {
	const key = "sk-secret-value"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"bad auth for `+key+`"}`)
	}))
	defer ts.Close()

	a := New(key, "m", ts.URL)
	_, err := a.Suggest(context.Background(), "t", 30)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), key) {
		t.Fatalf("error leaks API key: %v", err)
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("error missing status: %v", err)
	}
}

func TestSuggest_NoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer ts.Close()

	a := New("k", "m", ts.URL)
	if _, err := a.Suggest(context.Background(), "t", 30); err == nil {
		t.Fatal("expected error")
	}
}
