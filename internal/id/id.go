package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a random, time-sortable ULID. Use it for run identifiers and
// anything else that must be unique across processes.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Sequence hands out ULIDs stamped with caller-supplied times and entropy
// drawn from a fixed seed. Two sequences with the same seed fed the same
// times produce the same IDs, which keeps replay trade logs byte-identical.
type Sequence struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSequence returns a deterministic ULID sequence.
func NewSequence(seed int64) *Sequence {
	return &Sequence{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// Next returns the next ULID for time t. Times before the Unix epoch are
// clamped to it.
func (s *Sequence) Next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Before(time.Unix(0, 0)) {
		t = time.Unix(0, 0)
	}
	id, err := ulid.New(ulid.Timestamp(t.UTC()), s.entropy)
	if err != nil {
		// Only reachable when more than 2^80 IDs share one millisecond.
		panic(err)
	}
	return id.String()
}
