// internal/regen/orchestrator.go

// Package regen produces new summary records for live sessions: fetching
// audio, chunking long clips, driving the summarization service with
// bounded retries, and committing the result to the record store and the
// session in one logical step.
package regen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/errgroup"

	"github.com/user/voicebrief/internal/modes"
	"github.com/user/voicebrief/internal/session"
	"github.com/user/voicebrief/internal/types"
	"github.com/user/voicebrief/pkg/summarize"
)

// Config bounds one regeneration.
type Config struct {
	// ChunkThreshold is the duration above which audio is split.
	ChunkThreshold time.Duration
	MinChunk       time.Duration
	MaxChunk       time.Duration
	// MaxConcurrentChunks caps parallel chunk dispatch to stay inside the
	// service's rate limits.
	MaxConcurrentChunks int
	// CallTimeout is the hard deadline on each external call attempt.
	CallTimeout time.Duration
	// MaxTranscriptTokens bounds the merged transcript handed to the
	// final summarization pass.
	MaxTranscriptTokens int
	LanguageHint        string
}

// Orchestrator regenerates summaries. At most one regeneration is ever in
// flight per session; the session's processing flag is the exclusion
// point.
type Orchestrator struct {
	sessions  *session.Store
	records   types.RecordStore
	provider  summarize.Provider
	fetcher   types.AudioFetcher
	chunker   *Chunker
	retry     *RetryPolicy
	tokenizer *tiktoken.Tiktoken
	cfg       Config
}

// New creates an Orchestrator. The retry policy may be nil to use defaults.
func New(sessions *session.Store, records types.RecordStore, provider summarize.Provider, fetcher types.AudioFetcher, cfg Config, retry *RetryPolicy) (*Orchestrator, error) {
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if cfg.MaxConcurrentChunks <= 0 {
		cfg.MaxConcurrentChunks = 2
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}
	return &Orchestrator{
		sessions:  sessions,
		records:   records,
		provider:  provider,
		fetcher:   fetcher,
		chunker:   NewChunker(cfg.MinChunk, cfg.MaxChunk),
		retry:     retry,
		tokenizer: enc,
		cfg:       cfg,
	}, nil
}

// Regenerate produces, persists, and commits one new summary record for
// the session, using the given mode. Fails fast with types.ErrBusy when a
// regeneration is already in flight. Repeated calls with the same mode
// are independent attempts; results are never deduplicated.
func (o *Orchestrator) Regenerate(ctx context.Context, key types.SessionKey, mode types.Mode) (*types.SummaryRecord, error) {
	info, ok := modes.Lookup(mode)
	if !ok {
		return nil, fmt.Errorf("unsupported mode %q", mode)
	}

	// Begin: mark processing under the session lock and snapshot what the
	// pipeline needs. No other operation may run for this session until
	// the commit or rollback below clears the flag.
	var artifact types.AudioArtifactRef
	var sourceMessageID int64
	var gen uint64
	err := o.sessions.WithSession(key, false, func(sc *types.SessionContext, g uint64) error {
		if sc.Processing {
			return types.ErrBusy
		}
		sc.Processing = true
		sc.State = types.StateProcessing
		artifact = sc.Artifact
		sourceMessageID = sc.SourceMessageID
		gen = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary, transcript, prodErr := o.produce(ctx, artifact, info)

	var rec *types.SummaryRecord
	var persistErr error
	if prodErr == nil {
		rec = &types.SummaryRecord{
			Artifact:        artifact,
			Owner:           artifact.Owner,
			SourceMessageID: sourceMessageID,
			Mode:            mode,
			Summary:         summary,
			Transcript:      transcript,
			CreatedAt:       time.Now(),
		}
		if _, persistErr = o.records.Append(ctx, rec); persistErr != nil {
			persistErr = fmt.Errorf("persist summary: %w", persistErr)
		}
	}

	// Commit or roll back. A generation mismatch means the session was
	// evicted and recreated while we were away: the result is dropped on
	// arrival, never applied to the new incarnation.
	commitErr := o.sessions.WithSession(key, false, func(sc *types.SessionContext, g uint64) error {
		if g != gen {
			return types.ErrExpired
		}
		sc.Processing = false
		if prodErr != nil || persistErr != nil {
			// Pre-attempt state: prior content (if any) stays current.
			if sc.CurrentRecordID != "" {
				sc.State = types.StateDisplayed
			} else {
				sc.State = types.StateIdle
			}
			return nil
		}
		sc.CurrentRecordID = rec.ID
		sc.LastMode = mode
		sc.State = types.StateDisplayed
		return nil
	})
	if commitErr != nil {
		slog.Info("dropping stale regeneration result", "key", string(key), "mode", string(mode), "error", commitErr)
		return nil, types.ErrExpired
	}
	if prodErr != nil {
		return nil, prodErr
	}
	if persistErr != nil {
		return nil, persistErr
	}
	return rec, nil
}

// produce runs the summarization pipeline without touching session state.
func (o *Orchestrator) produce(ctx context.Context, artifact types.AudioArtifactRef, info modes.Info) (summary, transcript string, err error) {
	data, mimeType, err := o.fetcher.Fetch(ctx, artifact)
	if err != nil {
		return "", "", fmt.Errorf("fetch audio: %w", err)
	}

	spec := summarize.ModeSpec{
		BehaviorID:   info.BehaviorID,
		Prompt:       info.Prompt,
		LanguageHint: o.cfg.LanguageHint,
	}

	if artifact.Duration <= o.cfg.ChunkThreshold {
		return o.produceSingle(ctx, data, mimeType, spec)
	}
	return o.produceChunked(ctx, data, spec)
}

// produceSingle handles audio under the chunk threshold with one
// submit-and-summarize round trip.
func (o *Orchestrator) produceSingle(ctx context.Context, data []byte, mimeType string, spec summarize.ModeSpec) (string, string, error) {
	var res *summarize.Result
	err := o.withRetry(ctx, func(callCtx context.Context) error {
		h, err := o.provider.Submit(callCtx, data, mimeType)
		if err != nil {
			return err
		}
		r, err := o.provider.TranscribeAndSummarize(callCtx, h, spec)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return "", "", err
	}
	summary := res.Summary
	if spec.Prompt == "" {
		summary = res.Transcript
	}
	return summary, res.Transcript, nil
}

// produceChunked splits long audio, transcribes chunks concurrently up to
// the configured cap, merges transcripts in chunk order, and runs a
// single summarization pass over the merged text.
func (o *Orchestrator) produceChunked(ctx context.Context, data []byte, spec summarize.ModeSpec) (string, string, error) {
	chunks, err := o.chunker.Split(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: cannot split audio: %v", types.ErrArtifactTooLarge, err)
	}
	slog.Debug("split artifact for transcription", "chunks", len(chunks))

	transcriptSpec := summarize.ModeSpec{
		BehaviorID:   "transcript",
		LanguageHint: spec.LanguageHint,
	}

	transcripts := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentChunks)
	for _, chunk := range chunks {
		g.Go(func() error {
			var res *summarize.Result
			err := o.withRetry(gctx, func(callCtx context.Context) error {
				h, err := o.provider.Submit(callCtx, chunk.Data, "audio/wav")
				if err != nil {
					return err
				}
				r, err := o.provider.TranscribeAndSummarize(callCtx, h, transcriptSpec)
				if err != nil {
					return err
				}
				res = r
				return nil
			})
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			// Keyed by chunk index: merge order is the original audio
			// order no matter which chunk finished first.
			transcripts[chunk.Index] = res.Transcript
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", err
	}

	merged := strings.Join(transcripts, "\n\n")
	if o.cfg.MaxTranscriptTokens > 0 {
		if n := len(o.tokenizer.Encode(merged, nil, nil)); n > o.cfg.MaxTranscriptTokens {
			return "", "", fmt.Errorf("%w: merged transcript is %d tokens (limit %d)",
				types.ErrArtifactTooLarge, n, o.cfg.MaxTranscriptTokens)
		}
	}

	if spec.Prompt == "" {
		return merged, merged, nil
	}

	var summary string
	err = o.withRetry(ctx, func(callCtx context.Context) error {
		s, err := o.provider.SummarizeText(callCtx, merged, spec)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return summary, merged, nil
}

// withRetry applies the per-call deadline and the retry policy to one
// external operation.
func (o *Orchestrator) withRetry(ctx context.Context, fn func(context.Context) error) error {
	return o.retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
		return fn(callCtx)
	})
}
