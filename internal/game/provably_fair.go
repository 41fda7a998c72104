package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"sync"
)

// Source supplies the uniform draws every engine consumes.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

type mathSource struct{}

// NewMathSource returns a Source backed by the runtime's shared generator.
func NewMathSource() Source {
	return mathSource{}
}

func (mathSource) Float64() float64 { return mrand.Float64() }

func (mathSource) IntN(n int) int { return mrand.IntN(n) }

// HMACSource derives draws from HMAC-SHA256(serverSeed, clientSeed:nonce:cursor).
// The sequence is fully determined by the seeds, and the server seed can be
// committed to in advance through its SHA-256 hash.
type HMACSource struct {
	mu         sync.Mutex
	serverSeed string
	clientSeed string
	nonce      int
	cursor     int
}

func NewHMACSource(serverSeed, clientSeed string) *HMACSource {
	return &HMACSource{serverSeed: serverSeed, clientSeed: clientSeed}
}

// NewRandomHMACSource seeds both sides from crypto/rand.
func NewRandomHMACSource() (*HMACSource, error) {
	server, err := GenerateSeed()
	if err != nil {
		return nil, err
	}
	client, err := GenerateSeed()
	if err != nil {
		return nil, err
	}
	return NewHMACSource(server, client), nil
}

func (s *HMACSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := fmt.Sprintf("%s:%d:%d", s.clientSeed, s.nonce, s.cursor)
	s.cursor++

	h := hmac.New(sha256.New, []byte(s.serverSeed))
	h.Write([]byte(data))
	sum := h.Sum(nil)

	// top 53 bits give a uniformly spaced float in [0, 1)
	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
}

func (s *HMACSource) IntN(n int) int {
	if n <= 0 {
		panic("game: invalid argument to IntN")
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Commitment is the SHA-256 hash of the current server seed.
func (s *HMACSource) Commitment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HashCommitment(s.serverSeed)
}

// Rotate starts a new nonce under a fresh server seed and returns the seed it
// replaced.
func (s *HMACSource) Rotate() (string, error) {
	next, err := GenerateSeed()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.serverSeed
	s.serverSeed = next
	s.nonce++
	s.cursor = 0
	return prev, nil
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}
