package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a compact random identifier for live connections.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
