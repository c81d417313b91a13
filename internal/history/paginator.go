// internal/history/paginator.go

// Package history turns cursor-based page requests into record store
// queries. Cursors are anchored to the record they were minted from, so
// concurrent inserts never shift a reader's position mid-traversal.
package history

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/voicebrief/internal/types"
)

// cursor is the decoded form of the opaque pagination token.
type cursor struct {
	Owner    types.OwnerKey `json:"o"`
	AnchorID types.RecordID `json:"id"`
	AnchorAt int64          `json:"at"` // unix millis of the anchor record
	Size     int            `json:"n"`
}

func encodeCursor(c cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(token string) (cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: %v", types.ErrInvalidCursor, err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return cursor{}, fmt.Errorf("%w: %v", types.ErrInvalidCursor, err)
	}
	if c.AnchorID == "" || c.Size <= 0 {
		return cursor{}, types.ErrInvalidCursor
	}
	return c, nil
}

// Paginator is a stateless helper over the record store.
type Paginator struct {
	records types.RecordStore
}

// New creates a Paginator.
func New(records types.RecordStore) *Paginator {
	return &Paginator{records: records}
}

// Page resolves one history page. Pages are ordered newest-first by
// created_at, ties broken by id descending. DirInitial ignores the token;
// DirNext and DirPrev require a token minted by a prior response and fail
// with types.ErrInvalidCursor when it no longer resolves to a record.
func (p *Paginator) Page(ctx context.Context, owner types.OwnerKey, token string, dir types.Direction, size int) (*types.RenderHistoryPage, error) {
	if size <= 0 {
		size = 1
	}

	var recs []*types.SummaryRecord
	var hasOlder, hasNewer bool

	switch dir {
	case types.DirInitial:
		rows, err := p.records.ListNewest(ctx, owner, size+1)
		if err != nil {
			return nil, err
		}
		hasOlder = len(rows) > size
		recs = rows[:min(size, len(rows))]

	case types.DirNext:
		anchor, err := p.resolveAnchor(ctx, owner, token)
		if err != nil {
			return nil, err
		}
		rows, err := p.records.ListBefore(ctx, owner, anchor.at, anchor.id, size+1)
		if err != nil {
			return nil, err
		}
		hasOlder = len(rows) > size
		recs = rows[:min(size, len(rows))]
		hasNewer = len(recs) > 0

	case types.DirPrev:
		anchor, err := p.resolveAnchor(ctx, owner, token)
		if err != nil {
			return nil, err
		}
		rows, err := p.records.ListAfter(ctx, owner, anchor.at, anchor.id, size+1)
		if err != nil {
			return nil, err
		}
		hasNewer = len(rows) > size
		rows = rows[:min(size, len(rows))]
		// ListAfter walks oldest-first; flip to the page order.
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		recs = rows
		hasOlder = len(recs) > 0

	default:
		return nil, fmt.Errorf("unknown pagination direction %q", dir)
	}

	page := &types.RenderHistoryPage{
		Owner:    owner,
		Records:  recs,
		Controls: types.ControlsPager,
	}
	if len(recs) > 0 {
		if hasOlder {
			page.NextCursor = encodeCursor(cursor{
				Owner:    owner,
				AnchorID: recs[len(recs)-1].ID,
				AnchorAt: recs[len(recs)-1].CreatedAt.UnixMilli(),
				Size:     size,
			})
		}
		if hasNewer {
			page.PrevCursor = encodeCursor(cursor{
				Owner:    owner,
				AnchorID: recs[0].ID,
				AnchorAt: recs[0].CreatedAt.UnixMilli(),
				Size:     size,
			})
		}
	}

	total, err := p.records.Count(ctx, owner)
	if err != nil {
		return nil, err
	}
	page.Total = total
	return page, nil
}

type anchor struct {
	id types.RecordID
	at time.Time
}

// resolveAnchor decodes the token and verifies both its ownership and
// that the anchor record still exists.
func (p *Paginator) resolveAnchor(ctx context.Context, owner types.OwnerKey, token string) (anchor, error) {
	c, err := decodeCursor(token)
	if err != nil {
		return anchor{}, err
	}
	if c.Owner != owner {
		return anchor{}, types.ErrInvalidCursor
	}
	if _, err := p.records.GetByID(ctx, c.AnchorID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return anchor{}, types.ErrInvalidCursor
		}
		return anchor{}, err
	}
	return anchor{id: c.AnchorID, at: time.UnixMilli(c.AnchorAt)}, nil
}
