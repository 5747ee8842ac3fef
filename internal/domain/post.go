// Package domain defines the core types shared by the anchoring pipeline:
// normalized posts and their content identifiers, stored records, anchor
// requests and receipts, batch results and cycle outcomes. The persistence
// models for the local ledger and cycle journal live here as well so that
// the repository and service layers share one vocabulary.
package domain

import "fmt"

// NormalizedPost is the minimal, stable projection of a fetched post.
//
// The JSON field names define the canonical form hashed into a ContentID, so
// they must never change once records have been published.
type NormalizedPost struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// ContentID is the lowercase hex SHA-256 digest of a NormalizedPost's
// canonical serialization. It is both the record-store key and the hash
// submitted for anchoring.
type ContentID string

// String implements fmt.Stringer.
func (c ContentID) String() string { return string(c) }

// AnchorName builds the composite anchor name "account:post_id".
func AnchorName(account, postID string) string {
	return fmt.Sprintf("%s:%s", account, postID)
}
