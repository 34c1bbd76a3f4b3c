// Package id mints identifiers for ledger records.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
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

	// Monotonic entropy keeps ids minted in the same millisecond ordered.
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string. Events, entries, journal entries and proofs
// use these so lexical order follows creation order.
func New() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	return generate(time.Now().UTC(), mono)
}

func generate(at time.Time, entropy io.Reader) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), entropy)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// NewAsset returns a random UUID for assets created without a caller id.
func NewAsset() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate asset id: %w", err)
	}
	return u.String(), nil
}

// Sequence returns a deterministic generator ("prefix-1", "prefix-2", ...)
// for tests and replayed scenarios.
func Sequence(prefix string) func() (string, error) {
	var (
		smu sync.Mutex
		n   int
	)
	return func() (string, error) {
		smu.Lock()
		defer smu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n), nil
	}
}
