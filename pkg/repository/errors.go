package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates that no entity exists for the requested identifier.
	ErrNotFound = errors.New("entity not found")
	// ErrMalformedQuery indicates a derived query name that cannot be parsed.
	ErrMalformedQuery = errors.New("malformed derived query")
	// ErrUnknownProperty indicates a reference to a property the entity does not have.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrArgumentCount indicates a derived query called with the wrong number of arguments.
	ErrArgumentCount = errors.New("wrong number of query arguments")
	// ErrNonUniqueResult indicates a single-result query that matched several rows.
	ErrNonUniqueResult = errors.New("query did not return a unique result")
	// ErrInvalidPageable indicates a page request with a negative page or a non-positive size.
	ErrInvalidPageable = errors.New("invalid page request")
	// ErrUnsupportedRelation indicates a relation kind that cannot be fetched.
	ErrUnsupportedRelation = errors.New("unsupported relation")
)

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
