package summarize

// Handle identifies audio already submitted to the backend service.
type Handle struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
}

// ModeSpec carries the behavior a request should apply. Prompt is the full
// instruction text for summary modes; an empty Prompt asks for the
// transcript only.
type ModeSpec struct {
	BehaviorID   string `json:"behavior_id"`
	Prompt       string `json:"prompt,omitempty"`
	LanguageHint string `json:"language_hint,omitempty"`
}

// Result is the outcome of one transcription/summarization request.
// Summary is empty when the mode requested only a transcript.
type Result struct {
	Transcript string `json:"transcript"`
	Summary    string `json:"summary,omitempty"`
}

// Config holds common configuration for summarization providers.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}
