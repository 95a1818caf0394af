package util

import "github.com/google/uuid"

// NewID returns a URL-safe unique ID for request correlation.
func NewID() string {
	return uuid.NewString()
}
