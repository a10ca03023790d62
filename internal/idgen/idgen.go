// Package idgen mints ticket identifiers: a fixed "T-" marker followed
// by nine uppercase base-36 characters (36^9, about 1e14 values).  The
// generator does not check for existence; the ticket service retries
// on ErrDuplicateID.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	Prefix      = "T-"
	SuffixLen   = 9
	alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxUnbiased = 252 // largest multiple of 36 below 256
	// maxDraws bounds the bytes read for one id.  A healthy source
	// rejects about 1.6% of bytes, so hitting it means the source is
	// broken.
	maxDraws = 1024
)

// Generator produces ticket ids from a byte source.
type Generator struct {
	src      io.Reader
	fallback io.Reader
}

// New returns a Generator reading from crypto/rand.
func New() *Generator { return &Generator{src: rand.Reader, fallback: rand.Reader} }

// NewFromReader returns a Generator reading from src (tests).
func NewFromReader(src io.Reader) *Generator { return &Generator{src: src, fallback: rand.Reader} }

// Generate returns a fresh id.  Bytes >= 252 are rejected so every
// character is uniform over the alphabet.  If the source fails the
// generator falls back to crypto/rand.  It panics when no usable byte
// comes out of either source within maxDraws reads.
func (g *Generator) Generate() string {
	var b strings.Builder
	b.Grow(len(Prefix) + SuffixLen)
	b.WriteString(Prefix)
	buf := make([]byte, 1)
	var lastErr error
	for draws := 0; b.Len() < len(Prefix)+SuffixLen; draws++ {
		if draws == maxDraws {
			panic(fmt.Sprintf("idgen: random source exhausted after %d reads: %v", maxDraws, lastErr))
		}
		if _, err := io.ReadFull(g.src, buf); err != nil {
			if _, err := io.ReadFull(g.fallback, buf); err != nil {
				lastErr = err
				continue
			}
		}
		if buf[0] >= maxUnbiased {
			continue
		}
		b.WriteByte(alphabet[buf[0]%36])
	}
	return b.String()
}

// Valid reports whether id has the shape produced by Generate.
func Valid(id string) bool {
	if len(id) != len(Prefix)+SuffixLen || !strings.HasPrefix(id, Prefix) {
		return false
	}
	for i := len(Prefix); i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}
