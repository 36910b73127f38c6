package profile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chazu/exotic/callsite"
	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is the wire format version written by this package.
const SnapshotVersion = 1

var ErrVersion = errors.New("profile: unsupported snapshot version")

// Snapshot is a point-in-time record of every tracked site.
type Snapshot struct {
	Version       uint8         `cbor:"1,keyasint"`
	TakenUnixNano int64         `cbor:"2,keyasint"`
	Sites         []SiteProfile `cbor:"3,keyasint,omitempty"`
}

// Taken returns the time the snapshot was recorded.
func (s *Snapshot) Taken() time.Time {
	return time.Unix(0, s.TakenUnixNano)
}

// SiteProfile is one call site's statistics.
type SiteProfile struct {
	ID        string              `cbor:"1,keyasint"`
	Name      string              `cbor:"2,keyasint"`
	State     callsite.CacheState `cbor:"3,keyasint"`
	Depth     int                 `cbor:"4,keyasint"`
	MaxDepth  int                 `cbor:"5,keyasint"`
	Stable    bool                `cbor:"6,keyasint"`
	Hits      uint64              `cbor:"7,keyasint"`
	Misses    uint64              `cbor:"8,keyasint"`
	Fallbacks uint64              `cbor:"9,keyasint"`
}

// Calls returns the number of calls the site has served.
func (s SiteProfile) Calls() uint64 {
	return s.Hits + s.Misses + s.Fallbacks
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("profile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a snapshot to canonical CBOR.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("profile: unmarshal snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("version %d: %w", s.Version, ErrVersion)
	}
	return &s, nil
}

// WriteFile stores a snapshot at path.
func WriteFile(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a snapshot stored with WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
