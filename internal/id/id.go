// Package id provides identifier generation for queued operations, activity
// entries, and analytics events.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Operation ids embed their creation time so a queue dump stays readable:
// <unix-millis>-<6 hex chars>.
var operationIDRegex = regexp.MustCompile(`^\d{10,16}-[0-9a-f]{6}$`)

// NewOperationID generates a time-plus-random-suffix identifier.
func NewOperationID() string {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand only fails if the OS entropy source is broken; fall
		// back to a time-derived suffix so id generation never errors out.
		return fmt.Sprintf("%d-%06x", time.Now().UnixMilli(), time.Now().UnixNano()&0xffffff)
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// IsOperationID checks if a string matches the operation id format.
func IsOperationID(s string) bool {
	return operationIDRegex.MatchString(s)
}

// NewUUID generates a new UUID v4 string, used for activity entries and
// analytics events.
func NewUUID() string {
	return uuid.New().String()
}

// IsUUID checks if a string is a valid UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
