// Package recordstore is the client of the remote record store (a Kinto
// server). Records live under /buckets/{bucket}/collections/{account}/records
// and are written through the server's batch endpoint, one transport request
// carrying many independent sub-operations.
package recordstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/remote"
)

// DefaultMaxBatch is the server's default limit of sub-operations per batch.
const DefaultMaxBatch = 25

const service = "kinto"

// Client talks to one bucket of the record store.
type Client struct {
	rc       *remote.Client
	bucket   string
	maxBatch int
}

// NewClient creates a record-store client. auth is "user:password"; an empty
// string sends no credentials.
func NewClient(server, auth, bucket string, maxBatch int, timeout time.Duration) *Client {
	var authorize func(*http.Request)
	if auth != "" {
		user, password, _ := strings.Cut(auth, ":")
		authorize = remote.BasicAuth(user, password)
	}
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Client{
		rc:       remote.New(service, server, timeout, authorize),
		bucket:   bucket,
		maxBatch: maxBatch,
	}
}

// Bucket returns the bucket id the client writes to.
func (c *Client) Bucket() string { return c.bucket }

func (c *Client) bucketPath() string {
	return "/buckets/" + url.PathEscape(c.bucket)
}

func (c *Client) collectionPath(account string) string {
	return c.bucketPath() + "/collections/" + url.PathEscape(account)
}

func (c *Client) recordsPath(account string) string {
	return c.collectionPath(account) + "/records"
}

func (c *Client) recordPath(account string, id domain.ContentID) string {
	return c.recordsPath(account) + "/" + url.PathEscape(id.String())
}

// EnsureBucket creates the bucket if missing. PUT makes it safe to repeat.
func (c *Client) EnsureBucket(ctx context.Context) error {
	return c.rc.Do(ctx, remote.Request{
		Op:     "ensure_bucket",
		Method: http.MethodPut,
		Path:   c.bucketPath(),
	}, nil)
}

// EnsureCollection creates the collection of account if missing.
func (c *Client) EnsureCollection(ctx context.Context, account string) error {
	return c.rc.Do(ctx, remote.Request{
		Op:     "ensure_collection",
		Method: http.MethodPut,
		Path:   c.collectionPath(account),
	}, nil)
}

// Provision ensures the bucket and one collection per account exist.
func (c *Client) Provision(ctx context.Context, accounts []string) error {
	log.Info().Str("bucket", c.bucket).Msg("provisioning record store bucket")
	if err := c.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("provision bucket %q: %w", c.bucket, err)
	}
	for _, a := range accounts {
		log.Info().Str("bucket", c.bucket).Str("account", a).Msg("provisioning record store collection")
		if err := c.EnsureCollection(ctx, a); err != nil {
			return fmt.Errorf("provision collection %q: %w", a, err)
		}
	}
	return nil
}
