package splice

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/mtraver/base91"
)

// Fingerprint identifies a text snapshot for change detection.
type Fingerprint uint64

// FingerprintOf hashes the full text.
func FingerprintOf(text string) Fingerprint {
	return Fingerprint(xxhash.Sum64String(text))
}

// String renders the fingerprint compactly for logs and reports.
func (f Fingerprint) String() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(f))
	return base91.StdEncoding.EncodeToString(b[:])
}
