// internal/modes/modes.go

// Package modes is the static catalog of summary modes: display metadata
// and the prompt each mode sends to the summarization backend. Pure data.
package modes

import "github.com/user/voicebrief/internal/types"

// Info describes one summary mode.
type Info struct {
	Mode  types.Mode
	Label string
	// BehaviorID is the identifier handed to the summarization service.
	BehaviorID string
	// Prompt is the instruction applied over the transcript. Empty for
	// the raw-transcript mode, which needs no summarization pass.
	Prompt string
}

// Summarizes reports whether the mode needs a summarization pass over the
// transcript, as opposed to returning the transcript itself.
func (i Info) Summarizes() bool {
	return i.Prompt != ""
}

// catalog holds every mode in menu order. The order is only used for
// default selection and menu layout; it carries no other semantics.
var catalog = []Info{
	{
		Mode:       types.ModeCombined,
		Label:      "Combined",
		BehaviorID: "combined",
		Prompt: "Produce two sections over the transcript below. First a one-paragraph " +
			"summary of what was said, then the cleaned-up transcript itself with " +
			"punctuation and paragraph breaks added. Keep every name of a person or " +
			"company exactly as spoken; never replace names with generic words.",
	},
	{
		Mode:       types.ModeBrief,
		Label:      "Brief",
		BehaviorID: "brief",
		Prompt: "Write a brief but informative summary (3-5 sentences) of the transcript " +
			"below. Focus on the key information, main ideas and important details. " +
			"Keep every name of a person or company exactly as spoken; never replace " +
			"names with generic words like 'the speaker'.",
	},
	{
		Mode:       types.ModeDetailed,
		Label:      "Detailed",
		BehaviorID: "detailed",
		Prompt: "Write a detailed, well-structured summary of the transcript below, " +
			"covering every topic raised with its supporting details. Keep every name " +
			"of a person or company exactly as spoken.",
	},
	{
		Mode:       types.ModeBullet,
		Label:      "Bullet points",
		BehaviorID: "bullet",
		Prompt: "Summarize the transcript below as a flat bullet list, one key point " +
			"per line, most important first. Keep every name of a person or company " +
			"exactly as spoken.",
	},
	{
		Mode:       types.ModeTranscript,
		Label:      "As is",
		BehaviorID: "transcript",
	},
}

var byMode = func() map[types.Mode]Info {
	m := make(map[types.Mode]Info, len(catalog))
	for _, info := range catalog {
		m[info.Mode] = info
	}
	return m
}()

// All returns every mode in menu order.
func All() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for a mode.
func Lookup(m types.Mode) (Info, bool) {
	info, ok := byMode[m]
	return info, ok
}

// Valid reports whether m is one of the supported modes.
func Valid(m types.Mode) bool {
	_, ok := byMode[m]
	return ok
}
