package recordstore

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/remote"
)

// BatchDefaults is the method/path template shared by every sub-operation.
type BatchDefaults struct {
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
}

// BatchRequest is one sub-operation. Empty fields inherit the defaults.
type BatchRequest struct {
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Body   any    `json:"body,omitempty"`
}

type batchPayload struct {
	Defaults BatchDefaults  `json:"defaults"`
	Requests []BatchRequest `json:"requests"`
}

type batchResponse struct {
	Responses []struct {
		Status int             `json:"status"`
		Path   string          `json:"path"`
		Body   json.RawMessage `json:"body"`
	} `json:"responses"`
}

// dataEnvelope wraps record bodies the way the server expects and echoes them.
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// Batch submits reqs and returns one result per request, in request order.
// Requests above the server limit are split into several transport calls.
//
// A transport-level failure returns the results of the chunks already
// submitted together with the error.
func (c *Client) Batch(ctx context.Context, op string, defaults BatchDefaults, reqs []BatchRequest) ([]domain.BatchResult, error) {
	results := make([]domain.BatchResult, 0, len(reqs))
	for start := 0; start < len(reqs); start += c.maxBatch {
		end := min(start+c.maxBatch, len(reqs))
		chunk := reqs[start:end]

		var resp batchResponse
		if err := c.rc.Do(ctx, remote.Request{
			Op:     op,
			Method: http.MethodPost,
			Path:   "/batch",
			Body:   batchPayload{Defaults: defaults, Requests: chunk},
		}, &resp); err != nil {
			return results, err
		}
		if len(resp.Responses) != len(chunk) {
			return results, remote.Malformed(service, op, "got %d batch responses for %d requests", len(resp.Responses), len(chunk))
		}
		for i, r := range resp.Responses {
			results = append(results, domain.BatchResult{
				Index:  start + i,
				Status: r.Status,
				Path:   r.Path,
				Body:   r.Body,
			})
		}
	}
	return results, nil
}

// PublishItem is one record to create.
type PublishItem struct {
	ID    domain.ContentID
	Tweet domain.NormalizedPost
}

// PublishBatch creates one record per item in the account's collection.
func (c *Client) PublishBatch(ctx context.Context, account string, items []PublishItem) ([]domain.BatchResult, error) {
	reqs := make([]BatchRequest, len(items))
	for i, it := range items {
		reqs[i] = BatchRequest{Body: dataEnvelope[domain.StoredRecord]{
			Data: domain.StoredRecord{ID: it.ID, Tweet: it.Tweet},
		}}
	}
	return c.Batch(ctx, "publish_batch", BatchDefaults{
		Method: http.MethodPost,
		Path:   c.recordsPath(account),
	}, reqs)
}

// PatchItem is one partial update of an existing record.
type PatchItem struct {
	ID    domain.ContentID
	Patch any
}

// ReceiptPatch is the partial update attaching an anchor receipt to a record.
type ReceiptPatch struct {
	Receipts domain.AnchorReceipt `json:"receipts"`
}

// NewReceiptPatch builds the patch item setting receipts.id on record id.
func NewReceiptPatch(id domain.ContentID, receipt domain.AnchorReceipt) PatchItem {
	return PatchItem{ID: id, Patch: ReceiptPatch{Receipts: receipt}}
}

// PatchBatch applies one partial update per item.
func (c *Client) PatchBatch(ctx context.Context, account string, items []PatchItem) ([]domain.BatchResult, error) {
	reqs := make([]BatchRequest, len(items))
	for i, it := range items {
		reqs[i] = BatchRequest{
			Path: c.recordPath(account, it.ID),
			Body: dataEnvelope[any]{Data: it.Patch},
		}
	}
	return c.Batch(ctx, "patch_batch", BatchDefaults{Method: http.MethodPatch}, reqs)
}

// DecodeRecord extracts the stored record echoed by a successful
// sub-operation.
func DecodeRecord(r domain.BatchResult) (*domain.StoredRecord, error) {
	var env dataEnvelope[*domain.StoredRecord]
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil, remote.Malformed(service, "decode_record", "sub-result %d: %v", r.Index, err)
	}
	if env.Data == nil || env.Data.ID == "" {
		return nil, remote.Malformed(service, "decode_record", "sub-result %d: missing data.id", r.Index)
	}
	return env.Data, nil
}
