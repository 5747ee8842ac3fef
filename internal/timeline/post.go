// Package timeline fetches account timelines from the social-media API and
// normalizes raw posts into the minimal form that gets content-addressed.
package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// ErrMalformedPost is returned by Normalize when a raw post lacks a required
// field. It concerns a single post and must not abort the batch.
var ErrMalformedPost = errors.New("malformed post")

// RawPost is a post as returned by the timeline API. Pointers distinguish a
// missing field from an empty one.
type RawPost struct {
	IDStr     *string  `json:"id_str"`
	Text      *string  `json:"text"`
	CreatedAt *string  `json:"created_at"`
	User      *RawUser `json:"user"`

	// RetweetedStatus is present only on reposts.
	RetweetedStatus json.RawMessage `json:"retweeted_status,omitempty"`
}

// RawUser is the (trimmed) author object of a RawPost.
type RawUser struct {
	IDStr *string `json:"id_str"`
}

// IsRepost reports whether the post re-shares another account's post.
func (p RawPost) IsRepost() bool {
	return len(p.RetweetedStatus) > 0
}

// PostID returns the post id, or "" when absent.
func (p RawPost) PostID() string {
	if p.IDStr == nil {
		return ""
	}
	return *p.IDStr
}

// Normalize extracts the stable fields of p.
func Normalize(p RawPost) (domain.NormalizedPost, error) {
	var missing []string
	if p.User == nil || p.User.IDStr == nil {
		missing = append(missing, "user.id_str")
	}
	if p.Text == nil {
		missing = append(missing, "text")
	}
	if p.IDStr == nil || *p.IDStr == "" {
		missing = append(missing, "id_str")
	}
	if p.CreatedAt == nil {
		missing = append(missing, "created_at")
	}
	if len(missing) > 0 {
		return domain.NormalizedPost{}, fmt.Errorf("%w: missing %s", ErrMalformedPost, strings.Join(missing, ", "))
	}
	np := domain.NormalizedPost{
		UserID:    *p.User.IDStr,
		Text:      *p.Text,
		ID:        *p.IDStr,
		CreatedAt: *p.CreatedAt,
	}
	// Content ids are only injective over valid UTF-8.
	for _, f := range []struct{ name, v string }{
		{"user.id_str", np.UserID}, {"text", np.Text}, {"id_str", np.ID}, {"created_at", np.CreatedAt},
	} {
		if !utf8.ValidString(f.v) {
			return domain.NormalizedPost{}, fmt.Errorf("%w: invalid utf-8 in %s", ErrMalformedPost, f.name)
		}
	}
	return np, nil
}
