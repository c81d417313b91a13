// internal/types/models.go
package types

import "time"

// Mode names a summarization behavior. The set is closed; the catalog in
// internal/modes carries per-mode prompts and display metadata.
type Mode string

const (
	ModeCombined   Mode = "combined"
	ModeBrief      Mode = "brief"
	ModeDetailed   Mode = "detailed"
	ModeBullet     Mode = "bullet"
	ModeTranscript Mode = "transcript"
)

// DefaultMode is used for the first regeneration of a new artifact.
const DefaultMode = ModeBrief

// AudioArtifactRef is an opaque handle to a user-submitted audio clip.
// Immutable once created; regenerations reference it, never copy it.
type AudioArtifactRef struct {
	ID         ArtifactID    `json:"id"`
	Owner      OwnerKey      `json:"owner"`
	FileID     string        `json:"file_id"`
	MimeType   string        `json:"mime_type"`
	Duration   time.Duration `json:"duration"`
	Size       int64         `json:"size"`
	UploadedAt time.Time     `json:"uploaded_at"`
}

// SummaryRecord is one persisted regeneration result. Records are
// append-only: a redo or mode switch writes a new record rather than
// mutating an old one.
type SummaryRecord struct {
	ID              RecordID         `json:"id"`
	Artifact        AudioArtifactRef `json:"artifact"`
	Owner           OwnerKey         `json:"owner"`
	SourceMessageID int64            `json:"source_message_id"`
	Mode            Mode             `json:"mode"`
	Summary         string           `json:"summary"`
	Transcript      string           `json:"transcript,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// SessionState is the state-machine position of one live session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateDisplayed  SessionState = "displayed"
	StateModeMenu   SessionState = "mode_menu"
	StateProcessing SessionState = "processing"
	StateConfirmed  SessionState = "confirmed"
)

// SessionContext is the ephemeral per-message interaction state. It is
// only ever touched under its session's lock and is disposable: losing it
// makes the message's controls stale but never corrupts persisted data.
type SessionContext struct {
	Key             SessionKey
	Artifact        AudioArtifactRef
	SourceMessageID int64
	State           SessionState
	LastMode        Mode
	Processing      bool
	CurrentRecordID RecordID
}
