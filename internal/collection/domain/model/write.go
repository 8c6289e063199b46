package model

// Verb is a single-document write primitive
type Verb string

const (
	VerbCreate Verb = "create"
	VerbSet    Verb = "set"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// WriteOp is one queued bulk operation
type WriteOp struct {
	Ref     DocumentRef
	Verb    Verb
	Payload Record
}

// WriteSummary is handed to post-write hooks and published on the event bus.
// Deleted holds the records as they were before deletion.
type WriteSummary struct {
	Collection        string   `json:"collection"`
	Created           []Record `json:"created,omitempty"`
	Updated           []Record `json:"updated,omitempty"`
	Deleted           []Record `json:"deleted,omitempty"`
	CollectionDeleted bool     `json:"collectionDeleted,omitempty"`
	TransactionID     string   `json:"transactionId,omitempty"`
}

// IsEmpty reports a summary without changes
func (s WriteSummary) IsEmpty() bool {
	return len(s.Created) == 0 && len(s.Updated) == 0 && len(s.Deleted) == 0 && !s.CollectionDeleted
}

// MaxUpdated returns the largest __updated among created and updated records
func (s WriteSummary) MaxUpdated() int64 {
	var max int64
	for _, group := range [][]Record{s.Created, s.Updated} {
		for _, r := range group {
			if u := r.Updated(); u > max {
				max = u
			}
		}
	}
	return max
}
