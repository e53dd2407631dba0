package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a random UUID used as a primary key.
func New() string {
	return uuid.NewString()
}

// NewSortable returns a time-ordered id for connections, object keys and jobs.
func NewSortable() string {
	return ksuid.New().String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
