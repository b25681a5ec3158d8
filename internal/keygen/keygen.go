// Package keygen derives short content-addressed keys for stored payloads
// and drives the bounded retry loop that makes them unique.
//
// A key is the first 9 hex characters of a sha256 digest over the payload
// plus a salt, so identical payloads created at different instants still get
// different keys. ~36 bits of entropy means collisions are expected at
// scale; uniqueness comes from the store's constraint plus the retry loop,
// never from the digest alone.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/statelink/statelink/internal/domain"
)

// KeyLength is the number of hex characters in a generated key.
const KeyLength = 9

// MaxAttempts bounds the collision-retry loop.
const MaxAttempts = 100

// InsertFunc is one all-or-nothing attempt to persist a record under the
// candidate key. It must fail if the key is already taken.
type InsertFunc func(key string) error

// Generator produces candidate keys. Now and Rand exist so tests can pin
// the salts; the zero value is not usable, use New.
type Generator struct {
	Now  func() time.Time
	Rand func() uint64
}

func New() *Generator {
	return &Generator{
		Now:  time.Now,
		Rand: randomUint64,
	}
}

// Candidate derives the candidate key for the given attempt. Attempt 0
// salts with the current time; retries salt with a fresh random value so
// repeated collisions resample independently instead of looping on the
// same digest.
func (g *Generator) Candidate(payload []byte, attempt int) string {
	var salt string
	if attempt == 0 {
		salt = strconv.FormatFloat(float64(g.Now().UnixNano())/1e9, 'f', -1, 64)
	} else {
		salt = strconv.FormatUint(g.Rand(), 10)
	}

	sum := sha256.Sum256(append(append([]byte{}, payload...), salt...))
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// InsertWithRetry runs the collision-retry policy: sample a key, attempt
// the insert, resample on any failure, give up after MaxAttempts. Any
// insert error counts as a collision; distinguishing causes is left to the
// caller's logging. Returns the winning key and the number of attempts
// made, or ErrKeyExhausted wrapping the last insert error.
func (g *Generator) InsertWithRetry(payload []byte, insert InsertFunc) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		key := g.Candidate(payload, attempt)
		if err := insert(key); err != nil {
			lastErr = err
			continue
		}
		return key, attempt + 1, nil
	}
	return "", MaxAttempts, fmt.Errorf("%w after %d attempts: %v", domain.ErrKeyExhausted, MaxAttempts, lastErr)
}

func randomUint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// the clock rather than panicking mid-request.
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(buf[:])
}
