package random

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// GetUUID returns a random UUID without hyphens (32 hex characters).
func GetUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// CompletionID returns an OpenAI style chunk id: "chatcmpl-" followed by 24 hex characters.
func CompletionID() string {
	return "chatcmpl-" + GetUUID()[:24]
}

// Source yields integers in [0, n). Callers that need deterministic choices
// in tests inject their own implementation.
type Source interface {
	Intn(n int) int
}

// SourceFunc adapts a function to Source.
type SourceFunc func(n int) int

func (f SourceFunc) Intn(n int) int { return f(n) }

type cryptoSource struct{}

func (cryptoSource) Intn(n int) int {
	return RandRange(0, n)
}

// CryptoSource is the default Source, backed by crypto/rand.
var CryptoSource Source = cryptoSource{}

// seededSource is safe for concurrent use.
type seededSource struct {
	mu  sync.Mutex
	rnd *mrand.Rand
}

// NewSeededSource returns a reproducible Source for tests and simulations.
func NewSeededSource(seed uint64) Source {
	return &seededSource{rnd: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}

// RandRange returns a random number between min and max (max is not included)
func RandRange(min, max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return min + int(n.Int64())
}
