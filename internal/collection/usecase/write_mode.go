package usecase

import (
	"firestore-collection/internal/collection/domain/repository"
)

// WriteMode is either Transactional or Bulk
type WriteMode interface {
	isWriteMode()
	String() string
}

// Transactional writes go through one transaction and commit together
type Transactional struct {
	Tx repository.Transaction
}

// Bulk writes go through a bulk writer; each document is atomic on its own
type Bulk struct{}

func (Transactional) isWriteMode() {}
func (Bulk) isWriteMode()          {}

func (Transactional) String() string { return "transactional" }
func (Bulk) String() string          { return "bulk" }

// ModeFor picks Transactional when tx is set, Bulk otherwise
func ModeFor(tx repository.Transaction) WriteMode {
	if tx == nil {
		return Bulk{}
	}
	return Transactional{Tx: tx}
}
