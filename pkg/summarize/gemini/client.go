// Package gemini implements the summarize.Provider interface against the
// Gemini generative language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/user/voicebrief/pkg/summarize"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"

	// Uploaded files stay in PROCESSING briefly; poll until ACTIVE.
	pollInterval = 1 * time.Second
	maxPolls     = 60
)

// Client implements summarize.Provider for the Gemini API.
type Client struct {
	config     *summarize.Config
	httpClient *http.Client
}

// New creates a Gemini client with the given configuration.
func New(config *summarize.Config) *Client {
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Client{
		config: &cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type fileInfo struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type uploadResponse struct {
	File fileInfo `json:"file"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Submit uploads raw audio bytes and polls until the file is ready.
func (c *Client) Submit(ctx context.Context, audio []byte, mimeType string) (summarize.Handle, error) {
	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.config.BaseURL, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return summarize.Handle{}, &summarize.ServiceError{Kind: summarize.KindInvalidInput, Op: "submit", Err: err}
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("Content-Length", strconv.Itoa(len(audio)))

	var uploaded uploadResponse
	if err := c.do(req, "submit", &uploaded); err != nil {
		return summarize.Handle{}, err
	}

	info := uploaded.File
	for polls := 0; info.State == "PROCESSING"; polls++ {
		if polls >= maxPolls {
			return summarize.Handle{}, &summarize.ServiceError{
				Kind: summarize.KindTransient, Op: "submit",
				Err: fmt.Errorf("file %s still processing after %d polls", info.Name, maxPolls),
			}
		}
		select {
		case <-ctx.Done():
			return summarize.Handle{}, &summarize.ServiceError{Kind: summarize.KindTransient, Op: "submit", Err: ctx.Err()}
		case <-time.After(pollInterval):
		}
		if info, err = c.getFile(ctx, info.Name); err != nil {
			return summarize.Handle{}, err
		}
	}
	if info.State == "FAILED" {
		return summarize.Handle{}, &summarize.ServiceError{
			Kind: summarize.KindTransient, Op: "submit",
			Err: fmt.Errorf("server-side processing failed for %s", info.Name),
		}
	}

	return summarize.Handle{URI: info.URI, MimeType: mimeType}, nil
}

func (c *Client) getFile(ctx context.Context, name string) (fileInfo, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.config.BaseURL, name, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fileInfo{}, &summarize.ServiceError{Kind: summarize.KindInvalidInput, Op: "submit", Err: err}
	}
	var info fileInfo
	if err := c.do(req, "submit", &info); err != nil {
		return fileInfo{}, err
	}
	return info, nil
}

// transcriptionPrompt asks for a faithful transcript; the language hint is
// appended when the caller supplies one.
func transcriptionPrompt(languageHint string) string {
	p := "Transcribe the audio accurately. Preserve the speaker's exact words; " +
		"you may add punctuation and paragraph breaks for readability. " +
		"Return only the transcript text."
	if languageHint != "" {
		p += " The audio is in language: " + languageHint + "."
	}
	return p
}

// TranscribeAndSummarize transcribes the uploaded audio, then runs the
// mode's summary prompt over the transcript when one is set.
func (c *Client) TranscribeAndSummarize(ctx context.Context, h summarize.Handle, spec summarize.ModeSpec) (*summarize.Result, error) {
	transcript, err := c.generate(ctx, "transcribe", []part{
		{FileData: &fileData{MimeType: h.MimeType, FileURI: h.URI}},
		{Text: transcriptionPrompt(spec.LanguageHint)},
	})
	if err != nil {
		return nil, err
	}

	result := &summarize.Result{Transcript: transcript}
	if spec.Prompt == "" {
		return result, nil
	}

	summary, err := c.SummarizeText(ctx, transcript, spec)
	if err != nil {
		return nil, err
	}
	result.Summary = summary
	return result, nil
}

// SummarizeText runs the mode prompt over an existing transcript.
func (c *Client) SummarizeText(ctx context.Context, transcript string, spec summarize.ModeSpec) (string, error) {
	prompt := spec.Prompt
	if spec.LanguageHint != "" {
		prompt += " Answer in language: " + spec.LanguageHint + "."
	}
	return c.generate(ctx, spec.BehaviorID, []part{
		{Text: prompt + "\n\nTranscript:\n" + transcript},
	})
}

func (c *Client) generate(ctx context.Context, op string, parts []part) (string, error) {
	reqBody := generateRequest{Contents: []content{{Parts: parts}}}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", &summarize.ServiceError{Kind: summarize.KindInvalidInput, Op: op, Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.config.BaseURL, c.config.Model, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &summarize.ServiceError{Kind: summarize.KindInvalidInput, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var genResp generateResponse
	if err := c.do(req, op, &genResp); err != nil {
		return "", err
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", &summarize.ServiceError{
			Kind: summarize.KindTransient, Op: op,
			Err: errors.New("empty response"),
		}
	}

	var sb strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// do executes the request, classifies failures, and decodes the body into out.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, resets) are all transient.
		return &summarize.ServiceError{Kind: summarize.KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &summarize.ServiceError{Kind: summarize.KindTransient, Op: op, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &summarize.ServiceError{
			Kind: classifyStatus(resp.StatusCode),
			Op:   op,
			Err:  fmt.Errorf("api error (status %d): %s", resp.StatusCode, truncate(string(body), 512)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &summarize.ServiceError{Kind: summarize.KindTransient, Op: op, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

func classifyStatus(status int) summarize.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return summarize.KindQuota
	case status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		return summarize.KindInvalidInput
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusServiceUnavailable:
		return summarize.KindUnavailable
	case status >= 500:
		return summarize.KindTransient
	default:
		return summarize.KindInvalidInput
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
