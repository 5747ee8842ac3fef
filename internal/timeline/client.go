package timeline

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tbourn/tweet-anchoring/internal/remote"
)

// DefaultTimelineURL is the user timeline endpoint of the v1.1 API.
const DefaultTimelineURL = "https://api.twitter.com/1.1/statuses/user_timeline.json"

// Client fetches one page of an account's timeline.
//
// Pagination beyond the first page is not handled: an account that posts
// more than Count posts between two ticks loses the overflow.
type Client struct {
	rc    *remote.Client
	count int
}

// NewClient creates a timeline client. An empty timelineURL selects
// DefaultTimelineURL.
func NewClient(timelineURL, bearerToken string, count int, timeout time.Duration) *Client {
	if timelineURL == "" {
		timelineURL = DefaultTimelineURL
	}
	if count <= 0 {
		count = 20
	}
	return &Client{
		rc:    remote.New("twitter", timelineURL, timeout, remote.BearerToken(bearerToken)),
		count: count,
	}
}

// FetchTimeline returns the newest posts of account, newest first. When
// sinceID is non-empty only posts with a greater id are returned.
func (c *Client) FetchTimeline(ctx context.Context, account, sinceID string) ([]RawPost, error) {
	q := url.Values{}
	q.Set("screen_name", account)
	q.Set("trim_user", "1")
	q.Set("count", strconv.Itoa(c.count))
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}

	var posts []RawPost
	if err := c.rc.Do(ctx, remote.Request{
		Op:     "fetch_timeline",
		Method: http.MethodGet,
		Query:  q,
	}, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
