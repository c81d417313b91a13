package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/voicebrief/pkg/summarize"
)

func generateBody(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
}

func TestSubmitUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/upload/v1beta/files") {
			t.Errorf("unexpected upload path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("missing api key query parameter")
		}
		if r.Header.Get("X-Goog-Upload-Protocol") != "raw" {
			t.Errorf("expected raw upload protocol, got %q", r.Header.Get("X-Goog-Upload-Protocol"))
		}
		if r.Header.Get("Content-Type") != "audio/ogg" {
			t.Errorf("expected audio content type, got %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "audio-bytes" {
			t.Errorf("expected raw audio body, got %q", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"file": map[string]any{
				"name":  "files/abc",
				"uri":   "https://files/abc",
				"state": "ACTIVE",
			},
		})
	}))
	defer server.Close()

	client := New(&summarize.Config{BaseURL: server.URL, APIKey: "test-key"})
	h, err := client.Submit(context.Background(), []byte("audio-bytes"), "audio/ogg")
	if err != nil {
		t.Fatal(err)
	}
	if h.URI != "https://files/abc" {
		t.Errorf("unexpected handle uri %q", h.URI)
	}
	if h.MimeType != "audio/ogg" {
		t.Errorf("unexpected handle mime type %q", h.MimeType)
	}
}

func TestSubmitPollsUntilActive(t *testing.T) {
	var gets int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{
				"file": map[string]any{"name": "files/abc", "uri": "https://files/abc", "state": "PROCESSING"},
			})
			return
		}
		// Poll requests: become ACTIVE on the second one.
		gets++
		state := "PROCESSING"
		if gets >= 2 {
			state = "ACTIVE"
		}
		json.NewEncoder(w).Encode(map[string]any{"name": "files/abc", "uri": "https://files/abc", "state": state})
	}))
	defer server.Close()

	client := New(&summarize.Config{BaseURL: server.URL, APIKey: "k"})
	h, err := client.Submit(context.Background(), []byte("x"), "audio/ogg")
	if err != nil {
		t.Fatal(err)
	}
	if h.URI != "https://files/abc" {
		t.Errorf("unexpected handle uri %q", h.URI)
	}
	if gets < 2 {
		t.Errorf("expected at least 2 polls, got %d", gets)
	}
}

func TestTranscribeAndSummarize(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		calls++
		if calls == 1 {
			// Transcription request carries the file reference.
			if !strings.Contains(string(body), "file_uri") {
				t.Error("first request should reference the uploaded file")
			}
			json.NewEncoder(w).Encode(generateBody("the transcript"))
			return
		}
		// Summarization request carries the prompt and the transcript.
		if !strings.Contains(string(body), "Summarize briefly.") {
			t.Error("second request should carry the mode prompt")
		}
		if !strings.Contains(string(body), "the transcript") {
			t.Error("second request should carry the transcript")
		}
		json.NewEncoder(w).Encode(generateBody("the summary"))
	}))
	defer server.Close()

	client := New(&summarize.Config{BaseURL: server.URL, APIKey: "k", Model: "gemini-2.0-flash"})
	res, err := client.TranscribeAndSummarize(context.Background(),
		summarize.Handle{URI: "https://files/abc", MimeType: "audio/ogg"},
		summarize.ModeSpec{BehaviorID: "brief", Prompt: "Summarize briefly."})
	if err != nil {
		t.Fatal(err)
	}
	if res.Transcript != "the transcript" {
		t.Errorf("unexpected transcript %q", res.Transcript)
	}
	if res.Summary != "the summary" {
		t.Errorf("unexpected summary %q", res.Summary)
	}
	if calls != 2 {
		t.Errorf("expected 2 generate calls, got %d", calls)
	}
}

func TestTranscriptModeSkipsSecondCall(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(generateBody("verbatim"))
	}))
	defer server.Close()

	client := New(&summarize.Config{BaseURL: server.URL, APIKey: "k"})
	res, err := client.TranscribeAndSummarize(context.Background(),
		summarize.Handle{URI: "https://files/abc", MimeType: "audio/ogg"},
		summarize.ModeSpec{BehaviorID: "transcript"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Transcript != "verbatim" {
		t.Errorf("unexpected transcript %q", res.Transcript)
	}
	if res.Summary != "" {
		t.Errorf("transcript mode should not summarize, got %q", res.Summary)
	}
	if calls != 1 {
		t.Errorf("expected 1 generate call, got %d", calls)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   summarize.ErrorKind
	}{
		{http.StatusTooManyRequests, summarize.KindQuota},
		{http.StatusBadRequest, summarize.KindInvalidInput},
		{http.StatusRequestEntityTooLarge, summarize.KindInvalidInput},
		{http.StatusUnauthorized, summarize.KindUnavailable},
		{http.StatusServiceUnavailable, summarize.KindUnavailable},
		{http.StatusBadGateway, summarize.KindTransient},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error":"nope"}`))
		}))

		client := New(&summarize.Config{BaseURL: server.URL, APIKey: "k"})
		_, err := client.SummarizeText(context.Background(), "text", summarize.ModeSpec{BehaviorID: "brief", Prompt: "p"})
		server.Close()

		var se *summarize.ServiceError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: expected ServiceError, got %v", tc.status, err)
		}
		if se.Kind != tc.want {
			t.Errorf("status %d: expected kind %s, got %s", tc.status, tc.want, se.Kind)
		}
	}
}

func TestEmptyResponseIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	client := New(&summarize.Config{BaseURL: server.URL, APIKey: "k"})
	_, err := client.SummarizeText(context.Background(), "text", summarize.ModeSpec{BehaviorID: "brief", Prompt: "p"})

	var se *summarize.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Kind != summarize.KindTransient {
		t.Errorf("expected transient kind for empty response, got %s", se.Kind)
	}
}

func TestLanguageHintInPrompts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "language: ru") {
			t.Error("expected language hint in the prompt")
		}
		json.NewEncoder(w).Encode(generateBody("ok"))
	}))
	defer server.Close()

	client := New(&summarize.Config{BaseURL: server.URL, APIKey: "k"})
	_, err := client.SummarizeText(context.Background(), "text",
		summarize.ModeSpec{BehaviorID: "brief", Prompt: "p", LanguageHint: "ru"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestClientProviderInterface(t *testing.T) {
	var _ summarize.Provider = (*Client)(nil)
}
