package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/tweet-anchoring/internal/contentid"
	"github.com/tbourn/tweet-anchoring/internal/cursor"
	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/observability"
	"github.com/tbourn/tweet-anchoring/internal/recordstore"
	"github.com/tbourn/tweet-anchoring/internal/timeline"
)

// Phases used in log lines, spans and batch errors.
const (
	PhaseFetch   = "fetch"
	PhasePublish = "publish"
	PhaseAnchor  = "anchor"
	PhasePatch   = "patch"
)

// Policy decides what a failed batch item does to its cycle.
type Policy string

const (
	// PolicyFailFast fails the cycle on any failed item.
	PolicyFailFast Policy = "fail_fast"
	// PolicyPartial carries the successful items through and fails the cycle
	// only when a phase had no success at all.
	PolicyPartial Policy = "partial"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyFailFast, PolicyPartial:
		return p, nil
	case "":
		return PolicyFailFast, nil
	default:
		return "", fmt.Errorf("unknown batch policy %q", s)
	}
}

// DefaultPatchTimeout bounds the patch phase when Cycle.PatchTimeout is zero.
const DefaultPatchTimeout = 30 * time.Second

// Cycle runs one account-cycle: fetch, publish, anchor, patch.
type Cycle struct {
	Timeline   TimelineSource
	Store      RecordStore
	Reconciler *Reconciler
	Cursors    cursor.Store
	Policy     Policy
	// PatchTimeout bounds the patch phase, which outlives cancellation of
	// the cycle context.
	PatchTimeout time.Duration
}

// phaseAfter names the phase that follows the last reached state, which is
// where a failed cycle broke.
func phaseAfter(reached domain.CycleState) string {
	switch reached {
	case domain.StateFetched:
		return PhasePublish
	case domain.StatePublished:
		return PhaseAnchor
	case domain.StateAnchored:
		return PhasePatch
	default:
		return PhaseFetch
	}
}

// Run executes one cycle for account and always returns a terminal result.
// Panics are recovered into a failed result.
func (c *Cycle) Run(ctx context.Context, account string) (res domain.CycleResult) {
	res = domain.CycleResult{
		RunID:     uuid.NewString(),
		Account:   account,
		State:     domain.StatePending,
		Reached:   domain.StatePending,
		StartedAt: time.Now(),
	}
	logger := log.With().Str("account", account).Str("run_id", res.RunID).Logger()

	ctx, span := otel.Tracer("pipeline/Cycle").Start(ctx, "cycle",
		trace.WithAttributes(
			attribute.String("account", account),
			attribute.String("run.id", res.RunID),
		),
	)
	done := observability.CycleStarted()

	defer func() {
		if p := recover(); p != nil {
			res.State = domain.StateFailed
			res.Err = fmt.Errorf("panic in %s phase: %v", phaseAfter(res.Reached), p)
		}
		res.FinishedAt = time.Now()
		done()
		observability.ObserveCycle(res)

		span.SetAttributes(attribute.String("cycle.state", string(res.State)))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()

		if res.State == domain.StateFailed {
			logger.Error().Err(res.Err).
				Str("phase", phaseAfter(res.Reached)).
				Str("reached", string(res.Reached)).
				Int("item_failures", res.ItemFailures).
				Dur("duration", res.Duration()).
				Msg("cycle failed")
			return
		}
		logger.Info().
			Int("fetched", res.Fetched).
			Int("published", res.Published).
			Int("existing", res.Existing).
			Int("created", res.Created).
			Int("patched", res.Patched).
			Int("item_failures", res.ItemFailures).
			Str("cursor", res.Cursor).
			Dur("duration", res.Duration()).
			Msg("cycle done")
	}()

	c.run(ctx, logger, &res)
	return res
}

func (c *Cycle) fail(res *domain.CycleResult, err error) {
	res.State = domain.StateFailed
	res.Err = err
}

func (c *Cycle) run(ctx context.Context, logger zerolog.Logger, res *domain.CycleResult) {
	items, ok := c.fetch(ctx, logger, res)
	if !ok {
		return
	}
	if len(items) == 0 {
		res.State = domain.StateDone
		return
	}

	anchorItems, pubErr := c.publish(ctx, logger, res, items)
	if pubErr != nil && (c.Policy != PolicyPartial || res.Published == 0) {
		c.fail(res, pubErr)
		return
	}
	res.Reached = domain.StatePublished
	res.State = domain.StatePublished

	patches, anchorErr := c.anchor(ctx, logger, res, anchorItems)
	if anchorErr != nil && c.Policy == PolicyPartial && len(patches) > 0 {
		anchorErr = nil
	}
	if anchorErr == nil {
		res.Reached = domain.StateAnchored
		res.State = domain.StateAnchored
	}

	// Receipts already issued are patched even when the cycle is failing or
	// its context is done: the cursor has moved past these posts.
	timeout := c.PatchTimeout
	if timeout <= 0 {
		timeout = DefaultPatchTimeout
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	patchErr := c.patch(pctx, logger, res, patches)
	cancel()
	if patchErr != nil && (c.Policy != PolicyPartial || res.Patched == 0) {
		c.fail(res, errors.Join(anchorErr, patchErr))
		return
	}
	if anchorErr != nil {
		c.fail(res, anchorErr)
		return
	}
	res.State = domain.StateDone
}

// fetch reads the timeline since the account's cursor, advances the cursor
// over every observed post and returns the publishable items, oldest first.
func (c *Cycle) fetch(ctx context.Context, logger zerolog.Logger, res *domain.CycleResult) ([]recordstore.PublishItem, bool) {
	ctx, span := startPhase(ctx, PhaseFetch)
	defer span.End()
	l := logger.With().Str("phase", PhaseFetch).Logger()

	since, _, err := c.Cursors.Get(ctx, res.Account)
	if err != nil {
		c.fail(res, fmt.Errorf("read cursor: %w", err))
		return nil, false
	}
	res.Cursor = since

	posts, err := c.Timeline.FetchTimeline(ctx, res.Account, since)
	if err != nil {
		c.fail(res, fmt.Errorf("fetch timeline: %w", err))
		return nil, false
	}
	slices.Reverse(posts)
	res.Fetched = len(posts)

	items := make([]recordstore.PublishItem, 0, len(posts))
	for _, p := range posts {
		if id := p.PostID(); id != "" {
			if _, err := c.Cursors.Advance(ctx, res.Account, id); err != nil {
				c.fail(res, fmt.Errorf("advance cursor: %w", err))
				return nil, false
			}
			res.Cursor = cursor.Max(res.Cursor, id)
		}
		if p.IsRepost() {
			res.Reposts++
			continue
		}
		np, err := timeline.Normalize(p)
		if err != nil {
			res.Malformed++
			l.Warn().Err(err).Str("post_id", p.PostID()).Msg("skipping malformed post")
			continue
		}
		items = append(items, recordstore.PublishItem{ID: contentid.Compute(np), Tweet: np})
	}
	observability.CountPosts(observability.PostRepost, res.Reposts)
	observability.CountPosts(observability.PostMalformed, res.Malformed)

	res.Reached = domain.StateFetched
	res.State = domain.StateFetched
	l.Info().
		Int("posts", res.Fetched).
		Int("reposts", res.Reposts).
		Int("malformed", res.Malformed).
		Int("new", len(items)).
		Str("since", since).
		Msg("timeline fetched")
	return items, true
}

// publish creates the records and returns the anchor items of the ones the
// store accepted. Records echoed back with a receipt are already anchored and
// are left out.
func (c *Cycle) publish(ctx context.Context, logger zerolog.Logger, res *domain.CycleResult, items []recordstore.PublishItem) ([]AnchorItem, error) {
	ctx, span := startPhase(ctx, PhasePublish)
	defer span.End()
	l := logger.With().Str("phase", PhasePublish).Logger()

	results, err := c.Store.PublishBatch(ctx, res.Account, items)
	if err != nil && (c.Policy != PolicyPartial || len(results) == 0) {
		observability.CountPosts(observability.PostFailed, len(items))
		return nil, fmt.Errorf("publish batch: %w", err)
	}

	bErr := &BatchError{Phase: PhasePublish, Total: len(items)}
	anchorItems := make([]AnchorItem, 0, len(items))
	receipted := 0
	answered := make([]bool, len(items))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(items) {
			continue
		}
		answered[r.Index] = true
		want := items[r.Index]
		if !r.OK() {
			bErr.Failures = append(bErr.Failures, ItemFailure{ID: want.ID, Status: r.Status, Body: string(r.Body)})
			continue
		}
		rec, err := recordstore.DecodeRecord(r)
		if err == nil && rec.ID != want.ID {
			err = fmt.Errorf("store echoed record %s for %s", rec.ID, want.ID)
		}
		if err != nil {
			bErr.Failures = append(bErr.Failures, ItemFailure{ID: want.ID, Status: r.Status, Err: err})
			continue
		}
		res.Published++
		if rec.Receipts != nil {
			receipted++
			continue
		}
		anchorItems = append(anchorItems, AnchorItem{Account: res.Account, PostID: want.Tweet.ID, Hash: want.ID})
	}
	bErr.Failures = append(bErr.Failures, unanswered(answered, func(i int) domain.ContentID { return items[i].ID }, err)...)
	observability.CountPosts(observability.PostPublished, res.Published)
	observability.CountPosts(observability.PostFailed, len(bErr.Failures))

	l.Info().
		Int("published", res.Published).
		Int("failed", len(bErr.Failures)).
		Int("already_anchored", receipted).
		Msg("records published")

	if len(bErr.Failures) > 0 {
		res.ItemFailures += len(bErr.Failures)
		for _, f := range bErr.Failures {
			l.Warn().Str("hash", f.ID.String()).Int("status", f.Status).Str("failure", f.String()).Msg("record not published")
		}
		return anchorItems, bErr
	}
	return anchorItems, nil
}

// anchor reconciles receipts for the published items and returns the patches
// of the ones that got a receipt.
func (c *Cycle) anchor(ctx context.Context, logger zerolog.Logger, res *domain.CycleResult, items []AnchorItem) ([]recordstore.PatchItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ctx, span := startPhase(ctx, PhaseAnchor)
	defer span.End()
	l := logger.With().Str("phase", PhaseAnchor).Logger()

	reconciled := c.Reconciler.Reconcile(ctx, l, items)

	bErr := &BatchError{Phase: PhaseAnchor, Total: len(items)}
	patches := make([]recordstore.PatchItem, 0, len(reconciled))
	for _, rc := range reconciled {
		if rc.Err != nil {
			bErr.Failures = append(bErr.Failures, ItemFailure{ID: rc.Item.Hash, Err: rc.Err})
			l.Warn().Err(rc.Err).Str("hash", rc.Item.Hash.String()).Msg("anchor failed")
			continue
		}
		switch rc.Source {
		case domain.AnchorSourceCreated:
			res.Created++
		default:
			res.Existing++
		}
		patches = append(patches, recordstore.NewReceiptPatch(rc.Item.Hash, rc.Receipt))
	}
	l.Info().
		Int("existing", res.Existing).
		Int("created", res.Created).
		Int("failed", len(bErr.Failures)).
		Msg("anchors reconciled")

	if len(bErr.Failures) > 0 {
		res.ItemFailures += len(bErr.Failures)
		return patches, bErr
	}
	return patches, nil
}

// patch writes the receipts back onto the records in one batch.
func (c *Cycle) patch(ctx context.Context, logger zerolog.Logger, res *domain.CycleResult, patches []recordstore.PatchItem) error {
	if len(patches) == 0 {
		return nil
	}
	ctx, span := startPhase(ctx, PhasePatch)
	defer span.End()
	l := logger.With().Str("phase", PhasePatch).Logger()

	// Chunks applied before a transport failure still count as patched.
	results, err := c.Store.PatchBatch(ctx, res.Account, patches)
	if err != nil && len(results) == 0 {
		res.ItemFailures += len(patches)
		return fmt.Errorf("patch batch: %w", err)
	}

	bErr := &BatchError{Phase: PhasePatch, Total: len(patches)}
	answered := make([]bool, len(patches))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(patches) {
			continue
		}
		answered[r.Index] = true
		if !r.OK() {
			bErr.Failures = append(bErr.Failures, ItemFailure{ID: patches[r.Index].ID, Status: r.Status, Body: string(r.Body)})
			continue
		}
		res.Patched++
	}
	bErr.Failures = append(bErr.Failures, unanswered(answered, func(i int) domain.ContentID { return patches[i].ID }, err)...)
	l.Info().Int("patched", res.Patched).Int("failed", len(bErr.Failures)).Msg("receipts patched")

	if len(bErr.Failures) > 0 {
		res.ItemFailures += len(bErr.Failures)
		for _, f := range bErr.Failures {
			l.Warn().Str("hash", f.ID.String()).Int("status", f.Status).Str("failure", f.String()).Msg("receipt not patched")
		}
		return bErr
	}
	return nil
}

// unanswered reports the items a failed batch call returned no result for.
func unanswered(answered []bool, id func(int) domain.ContentID, err error) []ItemFailure {
	if err == nil {
		return nil
	}
	var out []ItemFailure
	for i, ok := range answered {
		if !ok {
			out = append(out, ItemFailure{ID: id(i), Err: err})
		}
	}
	return out
}

func startPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	return otel.Tracer("pipeline/Cycle").Start(ctx, phase)
}
