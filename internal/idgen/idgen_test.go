package idgen

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_Shape(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		id := g.Generate()
		assert.True(t, Valid(id), "unexpected id %q", id)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	src := bytes.NewReader([]byte{0, 1, 2, 35, 36, 255, 10, 11, 12, 13, 14})
	id := NewFromReader(src).Generate()
	// 255 is rejected as biased; 36 wraps to '0'.
	assert.Equal(t, "T-012Z0ABCD", id)
}

func TestGenerate_Distinct(t *testing.T) {
	g := New()
	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id := g.Generate()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("T-NOPE"))
	assert.False(t, Valid("X-ABCDEFGHI"))
	assert.False(t, Valid("T-abcdefghi"))
	assert.True(t, Valid("T-ABCDEFGH1"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

func TestGenerate_FallsBackWhenSourceFails(t *testing.T) {
	g := &Generator{src: failingReader{}, fallback: bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})}
	assert.Equal(t, "T-123456789", g.Generate())
}

func TestGenerate_PanicsWhenNoSourceWorks(t *testing.T) {
	g := &Generator{src: failingReader{}, fallback: failingReader{}}
	assert.PanicsWithValue(t, "idgen: random source exhausted after 1024 reads: entropy unavailable", func() { g.Generate() })

	biased := &Generator{src: constReader(255), fallback: failingReader{}}
	assert.Panics(t, func() { biased.Generate() })
}
