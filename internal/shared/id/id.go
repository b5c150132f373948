// Package id provides centralized ID generation for the backend.
//
// All identifiers are ULIDs with a type prefix (job_*, batch_*, req_*):
//   - Lexicographically sortable, so job listings follow creation order
//   - Prefixed for readable logs and to prevent cross-type misuse
//   - Generated from a single locked entropy source, unique process-wide
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// JobID identifies a queued unit of work.
type JobID string

// BatchID identifies a batch of jobs submitted together.
type BatchID string

// RequestID identifies an API request.
type RequestID string

// Prefixes for each ID type.
const (
	JobPrefix     = "job"
	BatchPrefix   = "batch"
	RequestPrefix = "req"
)

// Generator generates prefixed ULIDs.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // ulid entropy readers are not safe for concurrent use
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate returns a new ULID string with the given prefix.
func (g *Generator) Generate(prefix string) string {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	if prefix == "" {
		return u.String()
	}
	return fmt.Sprintf("%s_%s", prefix, u.String())
}

// NewJobID generates a job identifier.
func NewJobID() JobID {
	return JobID(Default().Generate(JobPrefix))
}

// NewBatchID generates a batch identifier.
func NewBatchID() BatchID {
	return BatchID(Default().Generate(BatchPrefix))
}

// NewRequestID generates a request identifier.
func NewRequestID() RequestID {
	return RequestID(Default().Generate(RequestPrefix))
}

// String returns the string form of the ID.
func (id JobID) String() string { return string(id) }

// String returns the string form of the ID.
func (id BatchID) String() string { return string(id) }

// String returns the string form of the ID.
func (id RequestID) String() string { return string(id) }

// Valid reports whether the ID carries the job prefix and a parseable ULID.
func (id JobID) Valid() bool { return valid(string(id), JobPrefix) }

func valid(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
