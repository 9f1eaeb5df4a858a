package conversation

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// IDRandomLength is the length of the random part in bytes.
	IDRandomLength = 24
	// IDPrefix is the prefix for conversation IDs.
	IDPrefix = "conv"
)

var (
	timestampRegex = regexp.MustCompile(`^\d+$`)
	randomRegex    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// IDGenerator handles secure conversation ID generation.
type IDGenerator struct{}

// NewIDGenerator creates a new conversation ID generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Generate creates a new cryptographically secure conversation ID of the
// form conv.timestamp.randompart.
func (g *IDGenerator) Generate() (string, error) {
	randomBytes := make([]byte, IDRandomLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", NewGenerationError(err)
	}

	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)
	return fmt.Sprintf("%s.%d.%s", IDPrefix, time.Now().Unix(), randomPart), nil
}

// Validate checks if a conversation ID has the correct format.
func (g *IDGenerator) Validate(id string) error {
	if id == "" {
		return NewInvalidError("empty conversation ID")
	}

	parts := strings.Split(id, ".")
	if len(parts) != 3 {
		return NewInvalidError("invalid conversation ID format")
	}
	if parts[0] != IDPrefix {
		return NewInvalidError("invalid conversation ID prefix")
	}
	if !timestampRegex.MatchString(parts[1]) {
		return NewInvalidError("invalid timestamp in conversation ID")
	}

	randomPart := parts[2]
	if !randomRegex.MatchString(randomPart) {
		return NewInvalidError("invalid characters in conversation ID")
	}
	if len(randomPart) < base64.RawURLEncoding.EncodedLen(IDRandomLength) {
		return NewInvalidError("conversation ID random part too short")
	}

	return nil
}
