// Package utils holds small helpers shared by the server and the CLI.
package utils

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyLock sync.Mutex
	entropy     = ulid.Monotonic(rand.Reader, 0)
)

// GenerateULID returns a ULID for the current time. IDs generated within the
// same millisecond are strictly increasing.
func GenerateULID() ulid.ULID {
	return GenerateULIDWithTime(time.Now())
}

// GenerateULIDString returns GenerateULID as its canonical 26 character form
func GenerateULIDString() string {
	return GenerateULID().String()
}

// GenerateULIDWithTime returns a ULID carrying t as its timestamp
func GenerateULIDWithTime(t time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// monotonic entropy overflowed within one millisecond
		entropy = ulid.Monotonic(rand.Reader, 0)
		return ulid.MustNew(ulid.Timestamp(t), entropy)
	}
	return id
}

// ParseULID parses a ULID string
func ParseULID(s string) (ulid.ULID, error) {
	return ulid.Parse(s)
}

// IsULID reports whether s is a well-formed ULID
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
