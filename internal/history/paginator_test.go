// internal/history/paginator_test.go
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/user/voicebrief/internal/types"
)

// memStore mimics the SQLite store's keyset ordering in memory.
type memStore struct {
	mu   sync.Mutex
	recs []*types.SummaryRecord
}

func (m *memStore) Append(_ context.Context, rec *types.SummaryRecord) (types.RecordID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = types.NewRecordID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.recs = append(m.recs, rec)
	return rec.ID, nil
}

func (m *memStore) GetByID(_ context.Context, id types.RecordID) (*types.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, types.ErrNotFound
}

func (m *memStore) remove(id types.RecordID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.recs {
		if rec.ID == id {
			m.recs = append(m.recs[:i], m.recs[i+1:]...)
			return
		}
	}
}

// newestFirst returns the owner's records ordered like the SQLite index:
// created_at DESC, id DESC.
func (m *memStore) newestFirst(owner types.OwnerKey) []*types.SummaryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.SummaryRecord
	for _, rec := range m.recs {
		if rec.Owner == owner {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		am, bm := a.CreatedAt.UnixMilli(), b.CreatedAt.UnixMilli()
		if am != bm {
			return am > bm
		}
		return a.ID > b.ID
	})
	return out
}

func (m *memStore) ListNewest(_ context.Context, owner types.OwnerKey, limit int) ([]*types.SummaryRecord, error) {
	out := m.newestFirst(owner)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListBefore(_ context.Context, owner types.OwnerKey, createdAt time.Time, id types.RecordID, limit int) ([]*types.SummaryRecord, error) {
	ts := createdAt.UnixMilli()
	var out []*types.SummaryRecord
	for _, rec := range m.newestFirst(owner) {
		rm := rec.CreatedAt.UnixMilli()
		if rm < ts || (rm == ts && rec.ID < id) {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListAfter(_ context.Context, owner types.OwnerKey, createdAt time.Time, id types.RecordID, limit int) ([]*types.SummaryRecord, error) {
	ts := createdAt.UnixMilli()
	newest := m.newestFirst(owner)
	var out []*types.SummaryRecord
	// Walk oldest first.
	for i := len(newest) - 1; i >= 0; i-- {
		rec := newest[i]
		rm := rec.CreatedAt.UnixMilli()
		if rm > ts || (rm == ts && rec.ID > id) {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, owner types.OwnerKey) (int64, error) {
	var n int64
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.Owner == owner {
			n++
		}
	}
	return n, nil
}

var owner = types.OwnerKey{UserID: 7, ChatID: 7}

// seed appends n records with strictly increasing timestamps; summaries
// are "rec-0" (oldest) through "rec-(n-1)" (newest).
func seed(t *testing.T, store *memStore, n int) []*types.SummaryRecord {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	recs := make([]*types.SummaryRecord, n)
	for i := 0; i < n; i++ {
		rec := &types.SummaryRecord{
			Owner:     owner,
			Mode:      types.ModeBrief,
			Summary:   fmt.Sprintf("rec-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := store.Append(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
		recs[i] = rec
	}
	return recs
}

func summaries(recs []*types.SummaryRecord) []string {
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.Summary
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInitialPageNewestFirst(t *testing.T) {
	store := &memStore{}
	seed(t, store, 5)
	p := New(store)

	page, err := p.Page(context.Background(), owner, "", types.DirInitial, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := summaries(page.Records); !equal(got, []string{"rec-4", "rec-3"}) {
		t.Errorf("unexpected first page %v", got)
	}
	if page.NextCursor == "" {
		t.Error("expected a next cursor with older records remaining")
	}
	if page.PrevCursor != "" {
		t.Error("first page should have no prev cursor")
	}
	if page.Total != 5 {
		t.Errorf("expected total 5, got %d", page.Total)
	}
}

func TestWalkForwardAndBack(t *testing.T) {
	store := &memStore{}
	seed(t, store, 5)
	p := New(store)
	ctx := context.Background()

	first, err := p.Page(ctx, owner, "", types.DirInitial, 2)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Page(ctx, owner, first.NextCursor, types.DirNext, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := summaries(second.Records); !equal(got, []string{"rec-2", "rec-1"}) {
		t.Errorf("unexpected second page %v", got)
	}
	third, err := p.Page(ctx, owner, second.NextCursor, types.DirNext, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := summaries(third.Records); !equal(got, []string{"rec-0"}) {
		t.Errorf("unexpected last page %v", got)
	}
	if third.NextCursor != "" {
		t.Error("last page should have no next cursor")
	}

	// Back toward the present.
	back, err := p.Page(ctx, owner, third.PrevCursor, types.DirPrev, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := summaries(back.Records); !equal(got, []string{"rec-2", "rec-1"}) {
		t.Errorf("unexpected page walking back %v", got)
	}
}

func TestCursorStableUnderInserts(t *testing.T) {
	store := &memStore{}
	seed(t, store, 4)
	p := New(store)
	ctx := context.Background()

	first, err := p.Page(ctx, owner, "", types.DirInitial, 2)
	if err != nil {
		t.Fatal(err)
	}

	// New records arrive between page fetches.
	store.Append(ctx, &types.SummaryRecord{Owner: owner, Summary: "rec-new", CreatedAt: time.Now()})

	second, err := p.Page(ctx, owner, first.NextCursor, types.DirNext, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := summaries(second.Records); !equal(got, []string{"rec-1", "rec-0"}) {
		t.Errorf("inserts must not shift the next page, got %v", got)
	}
}

func TestInvalidCursorRejected(t *testing.T) {
	store := &memStore{}
	seed(t, store, 3)
	p := New(store)
	ctx := context.Background()

	for _, token := range []string{"", "not-base64!!", "aGVsbG8"} {
		if _, err := p.Page(ctx, owner, token, types.DirNext, 2); !errors.Is(err, types.ErrInvalidCursor) {
			t.Errorf("token %q: expected ErrInvalidCursor, got %v", token, err)
		}
	}
}

func TestCursorOwnerMismatchRejected(t *testing.T) {
	store := &memStore{}
	seed(t, store, 3)
	p := New(store)
	ctx := context.Background()

	page, err := p.Page(ctx, owner, "", types.DirInitial, 1)
	if err != nil {
		t.Fatal(err)
	}
	other := types.OwnerKey{UserID: 99, ChatID: 99}
	if _, err := p.Page(ctx, other, page.NextCursor, types.DirNext, 1); !errors.Is(err, types.ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor for foreign cursor, got %v", err)
	}
}

func TestCursorWithDeletedAnchorRejected(t *testing.T) {
	store := &memStore{}
	recs := seed(t, store, 3)
	p := New(store)
	ctx := context.Background()

	page, err := p.Page(ctx, owner, "", types.DirInitial, 1)
	if err != nil {
		t.Fatal(err)
	}

	// The anchor is the newest record; drop it.
	store.remove(recs[2].ID)
	if _, err := p.Page(ctx, owner, page.NextCursor, types.DirNext, 1); !errors.Is(err, types.ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor for dangling anchor, got %v", err)
	}
}

func TestEmptyHistory(t *testing.T) {
	p := New(&memStore{})

	page, err := p.Page(context.Background(), owner, "", types.DirInitial, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Records) != 0 {
		t.Errorf("expected empty page, got %d records", len(page.Records))
	}
	if page.NextCursor != "" || page.PrevCursor != "" {
		t.Error("empty history should mint no cursors")
	}
	if page.Total != 0 {
		t.Errorf("expected total 0, got %d", page.Total)
	}
}

func TestPrevFromTopHasNoNewer(t *testing.T) {
	store := &memStore{}
	seed(t, store, 3)
	p := New(store)
	ctx := context.Background()

	first, err := p.Page(ctx, owner, "", types.DirInitial, 2)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Page(ctx, owner, first.NextCursor, types.DirNext, 2)
	if err != nil {
		t.Fatal(err)
	}
	back, err := p.Page(ctx, owner, second.PrevCursor, types.DirPrev, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := summaries(back.Records); !equal(got, []string{"rec-2", "rec-1"}) {
		t.Errorf("unexpected records walking back to the top, got %v", got)
	}
	if back.PrevCursor != "" {
		t.Error("top page reached via prev should have no prev cursor")
	}
}
