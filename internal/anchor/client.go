// Package anchor is the client of the blockchain anchoring service (Woleet).
//
// Anchoring is costly and irreversible, so callers must always look a hash up
// with FindExisting before calling CreateAnchor for it.
package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/remote"
)

// DefaultServer is the public API of the anchoring service.
const DefaultServer = "https://api.woleet.io/v1"

const service = "woleet"

var errMissingID = errors.New("missing id")

// Client looks up and creates anchors.
type Client struct {
	rc      *remote.Client
	limiter *rate.Limiter
}

// NewClient creates an anchoring client. CreateAnchor calls are throttled to
// rps per second with the given burst; rps <= 0 disables throttling.
func NewClient(server, bearerToken string, rps float64, burst int, timeout time.Duration) *Client {
	if server == "" {
		server = DefaultServer
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Client{
		rc:      remote.New(service, server, timeout, remote.BearerToken(bearerToken)),
		limiter: lim,
	}
}

// lookupResponse is the page returned by GET /anchorids. Pointers catch a
// missing totalElements.
type lookupResponse struct {
	TotalElements *int              `json:"totalElements"`
	Content       []json.RawMessage `json:"content"`
}

// FindExisting returns the receipt of an anchor already issued for hash, or
// nil when there is none.
func (c *Client) FindExisting(ctx context.Context, hash domain.ContentID) (*domain.AnchorReceipt, error) {
	const op = "find_anchor"
	var resp lookupResponse
	if err := c.rc.Do(ctx, remote.Request{
		Op:     op,
		Method: http.MethodGet,
		Path:   "/anchorids",
		Query:  url.Values{"hash": {hash.String()}},
	}, &resp); err != nil {
		return nil, err
	}
	if resp.TotalElements == nil {
		return nil, remote.Malformed(service, op, "missing totalElements")
	}
	if *resp.TotalElements == 0 {
		return nil, nil
	}
	if len(resp.Content) == 0 {
		return nil, remote.Malformed(service, op, "totalElements=%d but content is empty", *resp.TotalElements)
	}
	id, err := receiptID(resp.Content[0])
	if err != nil {
		return nil, remote.Malformed(service, op, "content[0]: %v", err)
	}
	return &domain.AnchorReceipt{ID: id}, nil
}

// receiptID accepts both a bare id string and an object carrying "id".
func receiptID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	if obj.ID == "" {
		return "", errMissingID
	}
	return obj.ID, nil
}

type createResponse struct {
	ID   string           `json:"id"`
	Hash domain.ContentID `json:"hash"`
}

// CreateAnchor requests a new anchor for req. It blocks on the client's rate
// limiter first.
func (c *Client) CreateAnchor(ctx context.Context, req domain.AnchorRequest) (domain.AnchorReceipt, error) {
	const op = "create_anchor"
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.AnchorReceipt{}, &remote.Error{Service: service, Op: op, Kind: remote.ErrTransient, Err: err}
	}
	var resp createResponse
	if err := c.rc.Do(ctx, remote.Request{
		Op:     op,
		Method: http.MethodPost,
		Path:   "/anchor",
		Body:   req,
	}, &resp); err != nil {
		return domain.AnchorReceipt{}, err
	}
	if resp.ID == "" {
		return domain.AnchorReceipt{}, remote.Malformed(service, op, "missing id")
	}
	if resp.Hash != "" && resp.Hash != req.Hash {
		return domain.AnchorReceipt{}, remote.Malformed(service, op, "anchor hash %s does not match request %s", resp.Hash, req.Hash)
	}
	return domain.AnchorReceipt{ID: resp.ID}, nil
}
