package pipeline

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/observability"
)

// AnchorItem is a published record waiting for its receipt.
type AnchorItem struct {
	Account string
	PostID  string
	Hash    domain.ContentID
}

// Request builds the anchor request for the item.
func (it AnchorItem) Request() domain.AnchorRequest {
	return domain.AnchorRequest{Name: domain.AnchorName(it.Account, it.PostID), Hash: it.Hash}
}

// Reconciled is the outcome of reconciling one AnchorItem. Exactly one of
// Receipt or Err is meaningful.
type Reconciled struct {
	Item    AnchorItem
	Receipt domain.AnchorReceipt
	// Source is one of domain.AnchorSourceLedger, AnchorSourceExisting or
	// AnchorSourceCreated.
	Source string
	Err    error
}

// Reconciler obtains a receipt for every published item, reusing existing
// anchors and creating the missing ones.
type Reconciler struct {
	Anchors AnchorService
	// Ledger is optional.
	Ledger Ledger
	// Concurrency bounds the items processed at once; <= 0 means one.
	Concurrency int
}

// Reconcile processes items concurrently and returns one Reconciled per item,
// in input order. Items never cancel each other: a receipt obtained for one
// item is returned even when its siblings fail.
//
// For each item the order is strict: ledger, then FindExisting, then
// CreateAnchor only when both missed.
func (r *Reconciler) Reconcile(ctx context.Context, logger zerolog.Logger, items []AnchorItem) []Reconciled {
	out := make([]Reconciled, len(items))
	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, it := range items {
		g.Go(func() error {
			out[i] = r.reconcileOne(ctx, logger, it)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Reconciler) reconcileOne(ctx context.Context, logger zerolog.Logger, it AnchorItem) Reconciled {
	ctx, span := otel.Tracer("pipeline/Reconciler").Start(ctx, "reconcile",
		trace.WithAttributes(
			attribute.String("account", it.Account),
			attribute.String("hash", it.Hash.String()),
		),
	)
	defer span.End()

	res := Reconciled{Item: it}
	l := logger.With().Str("hash", it.Hash.String()).Str("post_id", it.PostID).Logger()

	if r.Ledger != nil {
		entry, err := r.Ledger.GetAnchor(ctx, it.Hash)
		if err != nil {
			l.Warn().Err(err).Msg("anchor ledger lookup failed")
		} else if entry != nil {
			res.Receipt = domain.AnchorReceipt{ID: entry.ReceiptID}
			res.Source = domain.AnchorSourceLedger
			observability.CountAnchor(res.Source)
			l.Debug().Str("receipt", entry.ReceiptID).Msg("anchor found in ledger")
			return res
		}
	}

	existing, err := r.Anchors.FindExisting(ctx, it.Hash)
	if err != nil {
		res.Err = err
		span.RecordError(err)
		return res
	}
	if existing != nil {
		res.Receipt = *existing
		res.Source = domain.AnchorSourceExisting
		l.Debug().Str("receipt", existing.ID).Msg("existing anchor reused")
	} else {
		receipt, err := r.Anchors.CreateAnchor(ctx, it.Request())
		if err != nil {
			res.Err = err
			span.RecordError(err)
			return res
		}
		res.Receipt = receipt
		res.Source = domain.AnchorSourceCreated
		l.Info().Str("receipt", receipt.ID).Msg("anchor created")
	}
	observability.CountAnchor(res.Source)

	if r.Ledger != nil {
		if err := r.Ledger.SaveAnchor(ctx, domain.AnchorEntry{
			Hash:      it.Hash.String(),
			Account:   it.Account,
			Name:      domain.AnchorName(it.Account, it.PostID),
			ReceiptID: res.Receipt.ID,
			Source:    res.Source,
		}); err != nil {
			l.Warn().Err(err).Msg("anchor ledger write failed")
		}
	}
	return res
}
