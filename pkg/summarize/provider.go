package summarize

import "context"

// Provider defines the interface to an external transcription and
// summarization service. Implementations handle protocol details such as
// upload framing, authentication, and response parsing, and report
// failures as *ServiceError so callers can pick a retry policy by kind.
type Provider interface {
	// Submit uploads raw audio and returns a handle for later requests.
	Submit(ctx context.Context, audio []byte, mimeType string) (Handle, error)

	// TranscribeAndSummarize transcribes the submitted audio and, when the
	// mode calls for it, produces the mode's summary as well.
	TranscribeAndSummarize(ctx context.Context, h Handle, spec ModeSpec) (*Result, error)

	// SummarizeText runs the mode's summary prompt over an existing
	// transcript. Used after chunked transcripts are merged.
	SummarizeText(ctx context.Context, transcript string, spec ModeSpec) (string, error)
}
