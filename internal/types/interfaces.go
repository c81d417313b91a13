// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// RecordStore is the durable, append-only store of summary records. It is
// the single source of truth; session state is a disposable cache over it.
type RecordStore interface {
	Append(ctx context.Context, rec *SummaryRecord) (RecordID, error)
	GetByID(ctx context.Context, id RecordID) (*SummaryRecord, error)

	// ListNewest returns up to limit records for the owner, newest first
	// (created_at descending, ties broken by id descending).
	ListNewest(ctx context.Context, owner OwnerKey, limit int) ([]*SummaryRecord, error)

	// ListBefore returns records strictly older than the anchor position,
	// newest first. ListAfter returns records strictly newer, oldest
	// first. Both use keyset positions so concurrent inserts never shift
	// a reader already in a traversal.
	ListBefore(ctx context.Context, owner OwnerKey, createdAt time.Time, id RecordID, limit int) ([]*SummaryRecord, error)
	ListAfter(ctx context.Context, owner OwnerKey, createdAt time.Time, id RecordID, limit int) ([]*SummaryRecord, error)

	Count(ctx context.Context, owner OwnerKey) (int64, error)
}

// AudioFetcher resolves an artifact reference to its raw bytes. The
// transport owns artifact storage (platform file handles), so redo
// re-fetches through it rather than caching audio in the session.
type AudioFetcher interface {
	Fetch(ctx context.Context, ref AudioArtifactRef) (data []byte, mimeType string, err error)
}
