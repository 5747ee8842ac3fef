package domain

import "encoding/json"

// StoredRecord is the body persisted under
// {bucket}/{account}/records/{ContentID}.
//
// Receipts stays nil until an anchor proof has been reconciled. Once set it is
// never replaced with a different receipt for the same ContentID.
type StoredRecord struct {
	ID       ContentID      `json:"id"`
	Tweet    NormalizedPost `json:"tweet"`
	Receipts *AnchorReceipt `json:"receipts,omitempty"`
}

// AnchorRequest asks the anchoring service to timestamp Hash under Name.
type AnchorRequest struct {
	Name string    `json:"name"`
	Hash ContentID `json:"hash"`
}

// AnchorReceipt is the opaque proof identifier issued by the anchoring service.
type AnchorReceipt struct {
	ID string `json:"id"`
}

// BatchResult is the outcome of one sub-operation of a record-store batch.
// Sub-operations succeed or fail independently of their siblings.
type BatchResult struct {
	// Index is the position of the sub-operation in the submitted batch.
	Index  int
	Status int
	Path   string
	Body   json.RawMessage
}

// OK reports whether the sub-operation succeeded (status below 400).
func (r BatchResult) OK() bool { return r.Status > 0 && r.Status < 400 }
