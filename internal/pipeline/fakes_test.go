package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tbourn/tweet-anchoring/internal/cursor"
	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/recordstore"
	"github.com/tbourn/tweet-anchoring/internal/remote"
	"github.com/tbourn/tweet-anchoring/internal/timeline"
)

// ---------- raw posts ----------

func strp(s string) *string { return &s }

func rawPost(id, text string) timeline.RawPost {
	return timeline.RawPost{
		IDStr:     strp(id),
		Text:      strp(text),
		CreatedAt: strp("t1"),
		User:      &timeline.RawUser{IDStr: strp("u1")},
	}
}

func repost(id string) timeline.RawPost {
	p := rawPost(id, "RT something")
	p.RetweetedStatus = json.RawMessage(`{"id_str":"1"}`)
	return p
}

// ---------- timeline ----------

type fakeTimeline struct {
	mu     sync.Mutex
	posts  map[string][]timeline.RawPost
	errs   map[string]error
	sinces map[string][]string
}

func newFakeTimeline() *fakeTimeline {
	return &fakeTimeline{
		posts:  map[string][]timeline.RawPost{},
		errs:   map[string]error{},
		sinces: map[string][]string{},
	}
}

func (f *fakeTimeline) FetchTimeline(_ context.Context, account, sinceID string) ([]timeline.RawPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces[account] = append(f.sinces[account], sinceID)
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	// Hand out a copy: the cycle reverses the slice in place.
	return append([]timeline.RawPost(nil), f.posts[account]...), nil
}

// ---------- record store ----------

type fakeStore struct {
	mu sync.Mutex
	// records[account][id]
	records map[string]map[domain.ContentID]*domain.StoredRecord

	publishCalls int
	patchCalls   int
	published    [][]recordstore.PublishItem
	patched      [][]recordstore.PatchItem

	// failPublish / failPatch hold per-item statuses to return.
	failPublish map[domain.ContentID]int
	failPatch   map[domain.ContentID]int
	// transportErr fails every batch of an account.
	transportErr map[string]error
	// echoStored makes publish echo the stored record (with its receipts)
	// instead of the submitted body.
	echoStored bool
	// publishChunk / patchChunk > 0 apply only that many items of a batch
	// and return their results together with chunkErr, like a transport
	// failure on a later chunk.
	publishChunk int
	patchChunk   int
	chunkErr     error

	patchDeadline time.Time
}

// applied trims n items to the chunk that gets through before chunkErr.
func (f *fakeStore) applied(limit, n int) (int, error) {
	if limit > 0 && f.chunkErr != nil && n > limit {
		return limit, f.chunkErr
	}
	return n, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:      map[string]map[domain.ContentID]*domain.StoredRecord{},
		failPublish:  map[domain.ContentID]int{},
		failPatch:    map[domain.ContentID]int{},
		transportErr: map[string]error{},
	}
}

func echo(i int, status int, v any) domain.BatchResult {
	body, _ := json.Marshal(v)
	return domain.BatchResult{Index: i, Status: status, Body: body}
}

func (f *fakeStore) PublishBatch(ctx context.Context, account string, items []recordstore.PublishItem) ([]domain.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishCalls++
	f.published = append(f.published, items)
	if err := f.transportErr[account]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, chunkErr := f.applied(f.publishChunk, len(items))
	coll := f.records[account]
	if coll == nil {
		coll = map[domain.ContentID]*domain.StoredRecord{}
		f.records[account] = coll
	}
	out := make([]domain.BatchResult, n)
	for i, it := range items[:n] {
		if st, ok := f.failPublish[it.ID]; ok {
			out[i] = echo(i, st, map[string]any{"errno": 121, "message": "forbidden"})
			continue
		}
		rec, exists := coll[it.ID]
		if !exists {
			rec = &domain.StoredRecord{ID: it.ID, Tweet: it.Tweet}
			coll[it.ID] = rec
		}
		if f.echoStored {
			out[i] = echo(i, 200, map[string]any{"data": rec})
			continue
		}
		out[i] = echo(i, 201, map[string]any{"data": domain.StoredRecord{ID: it.ID, Tweet: it.Tweet}})
	}
	return out, chunkErr
}

func (f *fakeStore) PatchBatch(ctx context.Context, account string, items []recordstore.PatchItem) ([]domain.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchCalls++
	f.patched = append(f.patched, items)
	f.patchDeadline, _ = ctx.Deadline()
	if err := f.transportErr[account]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, chunkErr := f.applied(f.patchChunk, len(items))
	out := make([]domain.BatchResult, n)
	for i, it := range items[:n] {
		if st, ok := f.failPatch[it.ID]; ok {
			out[i] = echo(i, st, map[string]any{"message": "nope"})
			continue
		}
		rec := f.records[account][it.ID]
		if rec == nil {
			out[i] = echo(i, 404, map[string]any{"message": "missing"})
			continue
		}
		if p, ok := it.Patch.(recordstore.ReceiptPatch); ok {
			r := p.Receipts
			rec.Receipts = &r
		}
		out[i] = echo(i, 200, map[string]any{"data": rec})
	}
	return out, chunkErr
}

func (f *fakeStore) record(account string, id domain.ContentID) *domain.StoredRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[account][id]
}

func (f *fakeStore) count(account string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[account])
}

// ---------- anchoring service ----------

type anchorCall struct {
	Op   string
	Hash domain.ContentID
	Name string
}

type fakeAnchors struct {
	mu        sync.Mutex
	anchors   map[domain.ContentID]string
	calls     []anchorCall
	findErr   map[domain.ContentID]error
	createErr map[domain.ContentID]error
	// afterCreate runs once an anchor has been issued.
	afterCreate func()
}

func newFakeAnchors() *fakeAnchors {
	return &fakeAnchors{
		anchors:   map[domain.ContentID]string{},
		findErr:   map[domain.ContentID]error{},
		createErr: map[domain.ContentID]error{},
	}
}

func (f *fakeAnchors) FindExisting(_ context.Context, hash domain.ContentID) (*domain.AnchorReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, anchorCall{Op: "find", Hash: hash})
	if err := f.findErr[hash]; err != nil {
		return nil, err
	}
	if id, ok := f.anchors[hash]; ok {
		return &domain.AnchorReceipt{ID: id}, nil
	}
	return nil, nil
}

func (f *fakeAnchors) CreateAnchor(_ context.Context, req domain.AnchorRequest) (domain.AnchorReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, anchorCall{Op: "create", Hash: req.Hash, Name: req.Name})
	if err := f.createErr[req.Hash]; err != nil {
		return domain.AnchorReceipt{}, err
	}
	id := fmt.Sprintf("receipt-%d", len(f.anchors)+1)
	f.anchors[req.Hash] = id
	if f.afterCreate != nil {
		f.afterCreate()
	}
	return domain.AnchorReceipt{ID: id}, nil
}

func (f *fakeAnchors) ops(op string) []anchorCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []anchorCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func rejected(op string) error {
	return &remote.Error{Service: "woleet", Op: op, Status: 402, Kind: remote.ErrRejected}
}

// ---------- ledger & journal ----------

type fakeLedger struct {
	mu      sync.Mutex
	entries map[domain.ContentID]domain.AnchorEntry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[domain.ContentID]domain.AnchorEntry{}}
}

func (l *fakeLedger) GetAnchor(_ context.Context, hash domain.ContentID) (*domain.AnchorEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[hash]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (l *fakeLedger) SaveAnchor(_ context.Context, e domain.AnchorEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[domain.ContentID(e.Hash)]; !ok {
		l.entries[domain.ContentID(e.Hash)] = e
	}
	return nil
}

type fakeJournal struct {
	mu   sync.Mutex
	runs []domain.CycleResult
}

func (j *fakeJournal) RecordCycle(_ context.Context, r domain.CycleResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, r)
	return nil
}

func (j *fakeJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.runs)
}

// ---------- wiring ----------

type harness struct {
	timeline *fakeTimeline
	store    *fakeStore
	anchors  *fakeAnchors
	cursors  *cursor.MemoryStore
	cycle    *Cycle
}

func newHarness(policy Policy) *harness {
	h := &harness{
		timeline: newFakeTimeline(),
		store:    newFakeStore(),
		anchors:  newFakeAnchors(),
		cursors:  cursor.NewMemoryStore(),
	}
	h.cycle = &Cycle{
		Timeline:   h.timeline,
		Store:      h.store,
		Reconciler: &Reconciler{Anchors: h.anchors, Concurrency: 4},
		Cursors:    h.cursors,
		Policy:     policy,
	}
	return h
}
