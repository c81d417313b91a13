// internal/session/machine.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/voicebrief/internal/modes"
	"github.com/user/voicebrief/internal/types"
	"github.com/user/voicebrief/pkg/summarize"
)

// Regenerator produces a new summary record for a live session.
type Regenerator interface {
	Regenerate(ctx context.Context, key types.SessionKey, mode types.Mode) (*types.SummaryRecord, error)
}

// Paginator resolves history page requests.
type Paginator interface {
	Page(ctx context.Context, owner types.OwnerKey, cursor string, dir types.Direction, size int) (*types.RenderHistoryPage, error)
}

// Machine dispatches inbound control events against session state and
// produces the render instruction the transport should apply. All
// per-session invariants are enforced here and in the orchestrator, never
// in the transport.
type Machine struct {
	sessions *Store
	regen    Regenerator
	history  Paginator
	records  types.RecordStore
	pageSize int
}

// NewMachine wires the state machine to its collaborators.
func NewMachine(sessions *Store, regen Regenerator, history Paginator, records types.RecordStore, pageSize int) *Machine {
	if pageSize <= 0 {
		pageSize = 1
	}
	return &Machine{
		sessions: sessions,
		regen:    regen,
		history:  history,
		records:  records,
		pageSize: pageSize,
	}
}

// Handle computes the transition for one control event. Rejections
// surface as types.ErrBusy / types.ErrExpired / types.ErrInvalidCursor;
// regeneration failures surface as a RenderError so previously valid
// content is never discarded.
func (m *Machine) Handle(ctx context.Context, ev types.ControlEvent) (types.Render, error) {
	switch ev := ev.(type) {
	case types.NewArtifact:
		return m.handleNewArtifact(ctx, ev)
	case types.OpenModeMenu:
		return m.handleOpenModeMenu(ev)
	case types.SelectMode:
		return m.handleSelectMode(ctx, ev)
	case types.CancelModeMenu:
		return m.handleCancelModeMenu(ctx, ev)
	case types.Redo:
		return m.handleRedo(ctx, ev)
	case types.Confirm:
		return m.handleConfirm(ctx, ev)
	case types.HistoryRequest:
		return m.handleHistory(ctx, ev)
	default:
		return nil, fmt.Errorf("unknown control event %T", ev)
	}
}

func (m *Machine) handleNewArtifact(ctx context.Context, ev types.NewArtifact) (types.Render, error) {
	_, messageID, err := ev.Key.Split()
	if err != nil {
		return nil, err
	}
	err = m.sessions.WithSession(ev.Key, true, func(sc *types.SessionContext, _ uint64) error {
		if sc.State != types.StateIdle {
			return types.ErrBusy
		}
		sc.Artifact = ev.Artifact
		sc.SourceMessageID = messageID
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec, err := m.regen.Regenerate(ctx, ev.Key, types.DefaultMode)
	if errors.Is(err, types.ErrExpired) {
		return nil, err
	}
	if err != nil {
		// No prior content exists: drop the session so a re-send starts
		// clean, and surface the failure.
		m.sessions.Remove(ev.Key)
		return types.RenderError{Key: ev.Key, Message: failureNotice(err), Controls: types.ControlsNone}, nil
	}
	return types.RenderSummary{Key: ev.Key, Text: rec.Summary, Mode: rec.Mode, Controls: types.ControlsActions}, nil
}

func (m *Machine) handleOpenModeMenu(ev types.OpenModeMenu) (types.Render, error) {
	var current types.Mode
	err := m.sessions.WithSession(ev.Key, false, func(sc *types.SessionContext, _ uint64) error {
		if sc.Processing {
			return types.ErrBusy
		}
		if sc.State == types.StateConfirmed {
			return types.ErrExpired
		}
		sc.State = types.StateModeMenu
		current = sc.LastMode
		return nil
	})
	if err != nil {
		return nil, err
	}
	return types.RenderModeMenu{Key: ev.Key, Current: current, Controls: types.ControlsModes}, nil
}

func (m *Machine) handleSelectMode(ctx context.Context, ev types.SelectMode) (types.Render, error) {
	if !modes.Valid(ev.Mode) {
		return nil, fmt.Errorf("unsupported mode %q", ev.Mode)
	}
	return m.runRegeneration(ctx, ev.Key, ev.Mode)
}

func (m *Machine) handleRedo(ctx context.Context, ev types.Redo) (types.Render, error) {
	var mode types.Mode
	err := m.sessions.WithSession(ev.Key, false, func(sc *types.SessionContext, _ uint64) error {
		if sc.Processing {
			return types.ErrBusy
		}
		if sc.State == types.StateConfirmed {
			return types.ErrExpired
		}
		mode = sc.LastMode
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = types.DefaultMode
	}
	return m.runRegeneration(ctx, ev.Key, mode)
}

// runRegeneration drives a mode-switch or redo regeneration. Failure
// keeps the previous content: the session returns to Displayed and the
// error rides along as a transient notice.
func (m *Machine) runRegeneration(ctx context.Context, key types.SessionKey, mode types.Mode) (types.Render, error) {
	rec, err := m.regen.Regenerate(ctx, key, mode)
	if errors.Is(err, types.ErrBusy) || errors.Is(err, types.ErrExpired) {
		return nil, err
	}
	if err != nil {
		restoreErr := m.sessions.WithSession(key, false, func(sc *types.SessionContext, _ uint64) error {
			sc.State = types.StateDisplayed
			return nil
		})
		if restoreErr != nil {
			return nil, restoreErr
		}
		return types.RenderError{Key: key, Message: failureNotice(err), Controls: types.ControlsActions}, nil
	}
	return types.RenderSummary{Key: key, Text: rec.Summary, Mode: rec.Mode, Controls: types.ControlsActions}, nil
}

func (m *Machine) handleCancelModeMenu(ctx context.Context, ev types.CancelModeMenu) (types.Render, error) {
	var recordID types.RecordID
	var mode types.Mode
	err := m.sessions.WithSession(ev.Key, false, func(sc *types.SessionContext, _ uint64) error {
		if sc.Processing {
			return types.ErrBusy
		}
		if sc.State == types.StateConfirmed {
			return types.ErrExpired
		}
		sc.State = types.StateDisplayed
		recordID = sc.CurrentRecordID
		mode = sc.LastMode
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec, err := m.records.GetByID(ctx, recordID)
	if err != nil {
		slog.Warn("current record lookup failed on cancel", "key", string(ev.Key), "record_id", string(recordID), "error", err)
		return types.RenderError{Key: ev.Key, Message: "Could not restore the summary.", Controls: types.ControlsActions}, nil
	}
	return types.RenderSummary{Key: ev.Key, Text: rec.Summary, Mode: mode, Controls: types.ControlsActions}, nil
}

func (m *Machine) handleConfirm(ctx context.Context, ev types.Confirm) (types.Render, error) {
	var recordID types.RecordID
	err := m.sessions.WithSession(ev.Key, false, func(sc *types.SessionContext, _ uint64) error {
		if sc.Processing {
			return types.ErrBusy
		}
		if sc.State == types.StateConfirmed {
			return types.ErrExpired
		}
		sc.State = types.StateConfirmed
		recordID = sc.CurrentRecordID
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Terminal: the key is gone from the registry, so any later event on
	// it reports expired.
	m.sessions.Remove(ev.Key)

	var text string
	if rec, err := m.records.GetByID(ctx, recordID); err == nil {
		text = rec.Summary
	}
	return types.RenderConfirmed{Key: ev.Key, Text: text}, nil
}

func (m *Machine) handleHistory(ctx context.Context, ev types.HistoryRequest) (types.Render, error) {
	size := ev.PageSize
	if size <= 0 {
		size = m.pageSize
	}
	page, err := m.history.Page(ctx, ev.Owner, ev.Cursor, ev.Direction, size)
	if err != nil {
		return nil, err
	}
	return *page, nil
}

// failureNotice maps a regeneration failure to a short user-facing
// notice. Content already on screen stays; this rides alongside it.
func failureNotice(err error) string {
	if errors.Is(err, types.ErrArtifactTooLarge) {
		return "This audio is too long to process."
	}
	var se *summarize.ServiceError
	if errors.As(err, &se) {
		switch se.Kind {
		case summarize.KindQuota:
			return "The service is rate limiting requests. Try again in a minute."
		case summarize.KindInvalidInput:
			return "The service rejected this audio."
		case summarize.KindUnavailable:
			return "The summarization service is unavailable right now."
		}
	}
	return "Something went wrong. Please try again."
}
