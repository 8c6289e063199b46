package model

// DocumentRef addresses one document
type DocumentRef struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// NewDocumentRef builds a reference
func NewDocumentRef(collection, id string) DocumentRef {
	return DocumentRef{Collection: collection, ID: id}
}

// Path renders collection/id
func (r DocumentRef) Path() string {
	return r.Collection + "/" + r.ID
}

func (r DocumentRef) String() string {
	return r.Path()
}
