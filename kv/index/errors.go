package index

import (
	"fmt"

	"github.com/pingcap/errors"
)

// ConsistencyError means an index disagrees with the record it is maintained from. The write which
// hit it must be abandoned.
type ConsistencyError struct {
	Index  Key
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("index %s is inconsistent: %s", e.Index, e.Reason)
}

func inconsistent(key Key, format string, args ...interface{}) error {
	return errors.WithStack(&ConsistencyError{Index: key, Reason: fmt.Sprintf(format, args...)})
}

// IsConsistencyError reports whether err, or the error it wraps, is a ConsistencyError.
func IsConsistencyError(err error) bool {
	_, ok := errors.Cause(err).(*ConsistencyError)
	return ok
}

// UniqueViolation is returned when a unique attribute value is already held by another entity.
type UniqueViolation struct {
	Index      Key
	Attribute  AttributeIndexKey
	Value      interface{}
	ExistingPK int
	PK         int
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("unique attribute %s value %v of entity %d is already used by entity %d in %s",
		e.Attribute, e.Value, e.PK, e.ExistingPK, e.Index)
}

func IsUniqueViolation(err error) bool {
	_, ok := errors.Cause(err).(*UniqueViolation)
	return ok
}
