package usecase

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"firestore-collection/internal/collection/domain/model"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// GenerateID returns a fresh random 32 hex character id
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ComposeID derives the _id of a pre-record.
//
// Without unique keys the record's own _id is kept, or a random one generated.
// With unique keys the stringified values are concatenated in key order and
// hashed; an existing _id must equal that hash.
func ComposeID(pre model.Record, uniqueKeys []string) (string, error) {
	if !(model.Definition{UniqueKeys: uniqueKeys}).HasCompositeKey() {
		if id := pre.ID(); id != "" {
			return id, nil
		}
		return GenerateID(), nil
	}

	var sb strings.Builder
	for _, key := range uniqueKeys {
		v, ok := pre[key]
		if !ok || v == nil {
			return "", apperrors.NewMissingFieldError(key)
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return "", apperrors.NewValidationError("unique key " + key + " is not a scalar value").
				WithCode("UNIQUE_KEY_TYPE").
				WithDetail("field", key)
		}
		sb.WriteString(s)
	}

	sum := md5.Sum([]byte(sb.String()))
	composed := hex.EncodeToString(sum[:])

	if existing := pre.ID(); existing != "" && existing != composed {
		return "", apperrors.NewIdentityConflictError(existing, composed)
	}
	return composed, nil
}
