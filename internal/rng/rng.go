package rng

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Seeds pair a server seed with a client seed. Both are used as ASCII;
// neither is hex-decoded.
type Seeds struct {
	Server string
	Client string
}

// HashServer returns the hex SHA-256 of the server seed, the value that
// may be published before the seed itself is revealed.
func (s Seeds) HashServer() string {
	sum := sha256.Sum256([]byte(s.Server))
	return hex.EncodeToString(sum[:])
}

// Stream produces a deterministic byte stream for one nonce. Each block
// of 32 bytes is HMAC-SHA256(server, "client:nonce:block").
type Stream struct {
	seeds  Seeds
	nonce  uint64
	block  uint64
	pos    int
	buffer [32]byte
}

// NewStream starts the stream for nonce at byte zero.
func NewStream(seeds Seeds, nonce uint64) *Stream {
	return NewStreamAt(seeds, nonce, 0)
}

// NewStreamAt starts the stream for nonce at byte offset cursor.
func NewStreamAt(seeds Seeds, nonce, cursor uint64) *Stream {
	s := &Stream{
		seeds: seeds,
		nonce: nonce,
		block: cursor / 32,
		pos:   int(cursor % 32),
	}
	s.fill()
	return s
}

// Next returns the next byte of the stream.
func (s *Stream) Next() byte {
	if s.pos >= len(s.buffer) {
		s.block++
		s.pos = 0
		s.fill()
	}
	b := s.buffer[s.pos]
	s.pos++
	return b
}

// Float consumes four bytes and returns a float in [0, 1).
func (s *Stream) Float() float64 {
	return bytesToFloat([4]byte{s.Next(), s.Next(), s.Next(), s.Next()})
}

// Intn returns a uniform-ish integer in [0, n). It panics if n <= 0.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn with non-positive bound")
	}
	return int(math.Floor(s.Float() * float64(n)))
}

// Cursor is the byte offset of the next byte Next will return.
func (s *Stream) Cursor() uint64 {
	return s.block*32 + uint64(s.pos)
}

func (s *Stream) fill() {
	h := hmac.New(sha256.New, []byte(s.seeds.Server))
	fmt.Fprintf(h, "%s:%d:%d", s.seeds.Client, s.nonce, s.block)
	copy(s.buffer[:], h.Sum(nil))
}

func bytesToFloat(b [4]byte) float64 {
	result := 0.0
	for i, v := range b {
		result += float64(v) / math.Pow(256, float64(i+1))
	}
	return result
}

// Floats returns count floats for nonce starting at byte offset cursor.
func Floats(seeds Seeds, nonce, cursor uint64, count int) []float64 {
	s := NewStreamAt(seeds, nonce, cursor)
	out := make([]float64, count)
	for i := range out {
		out[i] = s.Float()
	}
	return out
}
