// Package util provides small helpers shared across DriverDesk packages.
package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewRequestID generates a reference id a driver can quote back over
// chat: REQ-<millis>-<4 hex chars>. The random suffix keeps two
// requests filed in the same millisecond distinct.
func NewRequestID() string {
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("REQ-%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("REQ-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}
