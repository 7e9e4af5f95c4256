package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a new UUID v4 string
func GenerateID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsValidUUID checks if the string is a valid UUID
func IsValidUUID(u string) bool {
	_, err := uuid.Parse(u)
	return err == nil
}

// GeneratePublicID returns prefix followed by eight upper-case hex characters
// taken from a fresh UUID, e.g. "SOL-3F9A01BC".
func GeneratePublicID(prefix string) string {
	raw := strings.ReplaceAll(GenerateID(), "-", "")
	return prefix + strings.ToUpper(raw[:8])
}
