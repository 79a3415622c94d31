package util

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewToken generates an opaque token for public tracking/onboarding URLs.
func NewToken() string {
	return uuid.NewString()
}

// FormatReference builds a human-readable reference like NFD-20240101-003.
// seq is the 1-based count of entities created that day.
func FormatReference(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day.Format("20060102"), seq)
}
