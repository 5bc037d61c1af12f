// Package uid generates identifiers for requests and queued tasks.
package uid

import "github.com/google/uuid"

// New returns a random identifier.
func New() string {
	return uuid.New().String()
}

// NewOrdered returns a time-ordered identifier, falling back to a random
// one if the clock sequence cannot be read.
func NewOrdered() string {
	id, err := uuid.NewV7()
	if err != nil {
		return New()
	}
	return id.String()
}
